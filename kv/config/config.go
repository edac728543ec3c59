package config

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Storage engine names.
const (
	EngineBadger  = "badger"
	EngineLevelDB = "leveldb"
	EngineMemory  = "memory"
)

const (
	defaultStatusAddr        = "127.0.0.1:20180"
	defaultMaxActiveActions  = 1000
	defaultMaxRunningActions = 100
	defaultIdleWait          = time.Millisecond
	defaultWorkers           = 16
	defaultLatencyWindow     = 1024
	defaultReplyBuffer       = 1024
	defaultEpoch             = 5 * time.Millisecond
	defaultMaxBatchSize      = 1000
	defaultEngine            = EngineBadger
	defaultDBPath            = "/tmp/tinycalvin"
	defaultValueLogFileSize  = 256 * MB
	defaultMaxTableSize      = 64 * MB
	defaultReplicas          = 1
	defaultPartitions        = 1
)

const (
	KB uint64 = 1024
	MB uint64 = 1024 * 1024
)

// Config is the configuration of one calvin-server process, i.e. one partition of one replica.
type Config struct {
	*flag.FlagSet `toml:"-" json:"-"`

	Version bool `toml:"-" json:"-"`

	StatusAddr string `toml:"status-addr" json:"status-addr"`
	// Workload is the path of a workload profile driving the server. Empty means no built-in load.
	Workload string `toml:"workload" json:"workload"`

	Log log.Config `toml:"log" json:"log"`

	Sequencer SequencerConfig `toml:"sequencer" json:"sequencer"`
	Scheduler SchedulerConfig `toml:"scheduler" json:"scheduler"`
	Executor  ExecutorConfig  `toml:"executor" json:"executor"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Locality  LocalityConfig  `toml:"locality" json:"locality"`

	configFile string

	// For all warnings during parsing.
	WarningMsgs []string

	logger   *zap.Logger
	logProps *log.ZapProperties
}

// SequencerConfig controls how client actions are cut into batches.
type SequencerConfig struct {
	Epoch        Duration `toml:"epoch" json:"epoch"`
	MaxBatchSize int      `toml:"max-batch-size" json:"max-batch-size"`
}

// SchedulerConfig bounds the work in flight. MaxActiveActions caps the actions holding or waiting for locks,
// MaxRunningActions caps the ones handed to the executor.
type SchedulerConfig struct {
	MaxActiveActions  int `toml:"max-active-actions" json:"max-active-actions"`
	MaxRunningActions int `toml:"max-running-actions" json:"max-running-actions"`
	// IdleWait is how long the control loop sleeps after a tick that made no progress.
	IdleWait Duration `toml:"idle-wait" json:"idle-wait"`
}

type ExecutorConfig struct {
	Workers int `toml:"workers" json:"workers"`
	// MaxExecRate limits executed actions per second. Zero means unlimited.
	MaxExecRate   float64 `toml:"max-exec-rate" json:"max-exec-rate"`
	LatencyWindow int     `toml:"latency-window" json:"latency-window"`
	// ReplyBuffer is the capacity of each client data channel.
	ReplyBuffer int `toml:"reply-buffer" json:"reply-buffer"`
}

type StorageConfig struct {
	Engine           string   `toml:"engine" json:"engine"`
	DBPath           string   `toml:"db-path" json:"db-path"`
	ValueLogFileSize ByteSize `toml:"value-log-file-size" json:"value-log-file-size"`
	MaxTableSize     ByteSize `toml:"max-table-size" json:"max-table-size"`
}

type LocalityConfig struct {
	Replica    uint32         `toml:"replica" json:"replica"`
	Replicas   uint32         `toml:"replicas" json:"replicas"`
	Partition  uint64         `toml:"partition" json:"partition"`
	Partitions uint64         `toml:"partitions" json:"partitions"`
	Masters    []MasterConfig `toml:"master" json:"master"`
}

// MasterConfig pins the keys under Prefix to a replica.
type MasterConfig struct {
	Prefix  string `toml:"prefix" json:"prefix"`
	Replica uint32 `toml:"replica" json:"replica"`
}

// NewConfig creates a config bound to the command line flags of calvin-server.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.FlagSet = flag.NewFlagSet("calvin-server", flag.ContinueOnError)
	fs := cfg.FlagSet

	fs.BoolVar(&cfg.Version, "V", false, "print version information and exit")
	fs.BoolVar(&cfg.Version, "version", false, "print version information and exit")
	fs.StringVar(&cfg.configFile, "config", "", "Config file")

	fs.StringVar(&cfg.StatusAddr, "status-addr", "", "status and metrics http address")
	fs.StringVar(&cfg.Workload, "workload", "", "workload profile (yaml) driving this server")
	fs.StringVar(&cfg.Storage.Engine, "engine", "", "storage engine: badger, leveldb or memory")
	fs.StringVar(&cfg.Storage.DBPath, "db-path", "", "directory to store the data in")

	fs.StringVar(&cfg.Log.Level, "L", "", "log level: debug, info, warn, error, fatal (default 'info')")
	fs.StringVar(&cfg.Log.File.Filename, "log-file", "", "log file path")

	return cfg
}

// NewDefaultConfig returns a config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	if err := cfg.Adjust(nil); err != nil {
		panic(err)
	}
	return cfg
}

// NewTestConfig returns a small in-memory configuration.
func NewTestConfig() *Config {
	cfg := &Config{
		Scheduler: SchedulerConfig{
			MaxActiveActions:  64,
			MaxRunningActions: 8,
			IdleWait:          NewDuration(100 * time.Microsecond),
		},
		Executor: ExecutorConfig{
			Workers: 4,
		},
		Storage: StorageConfig{
			Engine: EngineMemory,
		},
	}
	if err := cfg.Adjust(nil); err != nil {
		panic(err)
	}
	return cfg
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func adjustString(v *string, defValue string) {
	if len(*v) == 0 {
		*v = defValue
	}
}

func adjustInt(v *int, defValue int) {
	if *v == 0 {
		*v = defValue
	}
}

func adjustUint32(v *uint32, defValue uint32) {
	if *v == 0 {
		*v = defValue
	}
}

func adjustUint64(v *uint64, defValue uint64) {
	if *v == 0 {
		*v = defValue
	}
}

func adjustByteSize(v *ByteSize, defValue uint64) {
	if *v == 0 {
		*v = ByteSize(defValue)
	}
}

func adjustDuration(v *Duration, defValue time.Duration) {
	if v.Duration == 0 {
		v.Duration = defValue
	}
}

// Parse parses flag definitions from the argument list.
func (c *Config) Parse(arguments []string) error {
	// Parse first to get config file.
	err := c.FlagSet.Parse(arguments)
	if err != nil {
		return errors.WithStack(err)
	}

	// Load config file if specified.
	var meta *toml.MetaData
	if c.configFile != "" {
		meta, err = c.configFromFile(c.configFile)
		if err != nil {
			return err
		}
	}

	// Parse again to replace with command line options.
	err = c.FlagSet.Parse(arguments)
	if err != nil {
		return errors.WithStack(err)
	}

	if len(c.FlagSet.Args()) != 0 {
		return errors.Errorf("'%s' is an invalid flag", c.FlagSet.Arg(0))
	}

	return c.Adjust(meta)
}

// Adjust fills in defaults and validates the result.
func (c *Config) Adjust(meta *toml.MetaData) error {
	if meta != nil {
		if undecoded := meta.Undecoded(); len(undecoded) != 0 {
			errInfo := "Config contains undefined item: "
			for i, key := range undecoded {
				if i > 0 {
					errInfo += ", "
				}
				errInfo += key.String()
			}
			c.WarningMsgs = append(c.WarningMsgs, errInfo)
		}
	}

	adjustString(&c.StatusAddr, defaultStatusAddr)
	adjustString(&c.Log.Level, getLogLevel())

	adjustDuration(&c.Sequencer.Epoch, defaultEpoch)
	adjustInt(&c.Sequencer.MaxBatchSize, defaultMaxBatchSize)

	adjustInt(&c.Scheduler.MaxActiveActions, defaultMaxActiveActions)
	adjustInt(&c.Scheduler.MaxRunningActions, defaultMaxRunningActions)
	adjustDuration(&c.Scheduler.IdleWait, defaultIdleWait)

	adjustInt(&c.Executor.Workers, defaultWorkers)
	adjustInt(&c.Executor.LatencyWindow, defaultLatencyWindow)
	adjustInt(&c.Executor.ReplyBuffer, defaultReplyBuffer)

	adjustString(&c.Storage.Engine, defaultEngine)
	adjustString(&c.Storage.DBPath, defaultDBPath)
	adjustByteSize(&c.Storage.ValueLogFileSize, defaultValueLogFileSize)
	adjustByteSize(&c.Storage.MaxTableSize, defaultMaxTableSize)

	adjustUint32(&c.Locality.Replicas, defaultReplicas)
	adjustUint64(&c.Locality.Partitions, defaultPartitions)

	return c.Validate()
}

// Validate checks that the configuration is consistent.
func (c *Config) Validate() error {
	s := c.Scheduler
	if s.MaxRunningActions <= 0 {
		return errors.Errorf("max-running-actions must be positive, got %d", s.MaxRunningActions)
	}
	if s.MaxActiveActions < s.MaxRunningActions {
		return errors.Errorf("max-active-actions (%d) must not be less than max-running-actions (%d)",
			s.MaxActiveActions, s.MaxRunningActions)
	}
	if c.Sequencer.Epoch.Duration <= 0 || c.Sequencer.MaxBatchSize <= 0 {
		return errors.Errorf("sequencer epoch and max-batch-size must be positive")
	}
	if c.Executor.Workers <= 0 {
		return errors.Errorf("executor workers must be positive, got %d", c.Executor.Workers)
	}
	if c.Executor.MaxExecRate < 0 {
		return errors.Errorf("max-exec-rate must not be negative, got %v", c.Executor.MaxExecRate)
	}
	switch c.Storage.Engine {
	case EngineBadger, EngineLevelDB, EngineMemory:
	default:
		return errors.Errorf("unknown storage engine %q", c.Storage.Engine)
	}
	l := c.Locality
	if l.Replica >= l.Replicas {
		return errors.Errorf("replica %d out of range, cluster has %d replicas", l.Replica, l.Replicas)
	}
	if l.Partition >= l.Partitions {
		return errors.Errorf("partition %d out of range, replica has %d partitions", l.Partition, l.Partitions)
	}
	for _, m := range l.Masters {
		if m.Replica >= l.Replicas {
			return errors.Errorf("master %q points at replica %d, cluster has %d replicas", m.Prefix, m.Replica, l.Replicas)
		}
	}
	return nil
}

// Clone returns a cloned configuration.
func (c *Config) Clone() *Config {
	cfg := &Config{}
	*cfg = *c
	cfg.Locality.Masters = append([]MasterConfig(nil), c.Locality.Masters...)
	return cfg
}

func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "<nil>"
	}
	return string(data)
}

// configFromFile loads config from file.
func (c *Config) configFromFile(path string) (*toml.MetaData, error) {
	meta, err := toml.DecodeFile(path, c)
	return &meta, errors.WithStack(err)
}

// SetupLogger setup the logger.
func (c *Config) SetupLogger() error {
	lg, p, err := log.InitLogger(&c.Log, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return err
	}
	c.logger = lg
	c.logProps = p
	return nil
}

// GetZapLogger gets the created zap logger.
func (c *Config) GetZapLogger() *zap.Logger {
	return c.logger
}

// GetZapLogProperties gets properties of the zap logger.
func (c *Config) GetZapLogProperties() *log.ZapProperties {
	return c.logProps
}
