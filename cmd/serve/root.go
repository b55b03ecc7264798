package serve

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/ariesdevil/aerospike-server/cmd/util"
	"github.com/ariesdevil/aerospike-server/lib/logging"
	"github.com/ariesdevil/aerospike-server/lib/storage"
	_ "github.com/ariesdevil/aerospike-server/lib/storage/engines/device"
	_ "github.com/ariesdevil/aerospike-server/lib/storage/engines/memory"
)

var (
	serveCmdConfig []storage.NamespaceConfig
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the asd storage server",
		Long:    `Start the asd storage server with the specified namespaces. The configuration can be set via command line flags or environment variables. The format of the environment variables is ASD_<flag> (e.g. ASD_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitEnvConfig)

	// add flags
	key := "namespaces"
	ServeCmd.PersistentFlags().String(key, "test=memory", cmdUtil.WrapString("Comma-separated list of namespaces to serve. Format: NAME=KIND where KIND is one of: memory, device"))

	key = "data-in-memory"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Keep a full copy of device namespace data in memory. Memory namespaces always do"))

	key = "device-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("Directory holding the backing files of device namespaces. Each namespace gets <device-dir>/<name>.dat"))

	key = "device-file-size"
	ServeCmd.PersistentFlags().Int64(key, 1024, cmdUtil.WrapString("Size of each device namespace's backing file in MiB"))

	key = "write-block-size"
	ServeCmd.PersistentFlags().Int(key, 1024, cmdUtil.WrapString("Device write block size in KiB. Also the flat size limit of a single record"))

	key = "max-write-cache"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("Bound of the device write-back cache in MiB. A full cache makes the namespace report overloaded"))

	key = "min-avail-pct"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("Minimum available device capacity percentage below which writes are refused"))

	key = "defrag-lwm-pct"
	ServeCmd.PersistentFlags().Int(key, 50, cmdUtil.WrapString("Write block utilization percentage below which a block becomes a defragmentation candidate"))

	key = "tomb-raider-period"
	ServeCmd.PersistentFlags().Int(key, 120, cmdUtil.WrapString("Seconds between tomb raider reclamation passes on device namespaces"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address to expose Prometheus metrics on (e.g. 0.0.0.0:9090). Empty disables the metrics listener"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts it to namespace configurations
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	deviceDir := viper.GetString("device-dir")
	device := storage.DeviceConfig{
		FileSizeBytes:       viper.GetInt64("device-file-size") * 1024 * 1024,
		WriteBlockSize:      viper.GetInt("write-block-size") * 1024,
		MaxWriteCacheBytes:  viper.GetInt("max-write-cache") * 1024 * 1024,
		MinAvailPct:         viper.GetInt("min-avail-pct"),
		DefragLowWaterPct:   viper.GetInt("defrag-lwm-pct"),
		TombRaiderPeriodSec: viper.GetInt("tomb-raider-period"),
	}

	// parse namespaces
	namespacesConfig := viper.GetString("namespaces")
	serveCmdConfig = nil
	seen := map[string]bool{}

	for _, namespaceConfig := range strings.Split(namespacesConfig, ",") {
		parts := strings.Split(namespaceConfig, "=")
		if len(parts) != 2 {
			return fmt.Errorf("invalid namespace format: %s (expected NAME=KIND)", namespaceConfig)
		}

		name := strings.TrimSpace(parts[0])
		kind := storage.EngineKind(strings.TrimSpace(parts[1]))

		if name == "" {
			return fmt.Errorf("invalid namespace format: %s (empty name)", namespaceConfig)
		}
		if seen[name] {
			return fmt.Errorf("duplicate namespace: %s", name)
		}
		seen[name] = true

		if !kind.Valid() {
			return fmt.Errorf("invalid namespace kind: %s (expected one of: memory, device)", kind)
		}

		cfg := storage.NamespaceConfig{
			Name:         name,
			Kind:         kind,
			DataInMemory: viper.GetBool("data-in-memory"),
		}

		if kind == storage.EngineDevice {
			cfg.Device = device
			cfg.Device.Path = filepath.Join(deviceDir, name+".dat")
		}

		serveCmdConfig = append(serveCmdConfig, cfg)
	}

	return nil
}

// run starts the asd storage server
func run(_ *cobra.Command, _ []string) error {
	logging.InitLoggers(viper.GetString("log-level"))
	log := logger.GetLogger("cmd")

	// build the namespaces
	namespaces := make([]*storage.Namespace, 0, len(serveCmdConfig))
	for _, cfg := range serveCmdConfig {
		if cfg.Kind == storage.EngineDevice {
			if err := os.MkdirAll(filepath.Dir(cfg.Device.Path), 0o755); err != nil {
				return fmt.Errorf("cannot create device directory for namespace %s: %v", cfg.Name, err)
			}
		}

		ns, err := storage.NewNamespace(cfg)
		if err != nil {
			return err
		}
		namespaces = append(namespaces, ns)
	}

	store := storage.New(namespaces)

	// initialize storage: blocks until every namespace has loaded
	store.Init()
	store.StartTombRaiders()

	// expose Prometheus metrics
	if endpoint := viper.GetString("metrics-endpoint"); endpoint != "" {
		go func() {
			http.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
				metrics.WritePrometheus(w, true)
			})

			log.Infof("serving metrics on http://%s/metrics", endpoint)
			if err := http.ListenAndServe(endpoint, nil); err != nil {
				log.Errorf("metrics listener failed: %v", err)
			}
		}()
	}

	for _, ns := range namespaces {
		availPct, usedBytes := ns.Stats()
		log.Infof("{%s} serving (%s), avail %d%%, used %d bytes",
			ns.Name, ns.Kind, availPct, usedBytes)
	}

	// wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	// two-phase shutdown: drain record locks, then flush. One-way - the
	// process exits right after.
	store.Shutdown()

	return nil
}
