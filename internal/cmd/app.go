package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/RyanLisse/opencode-rs/internal/agent"
	"github.com/RyanLisse/opencode-rs/internal/checkpoint"
	"github.com/RyanLisse/opencode-rs/internal/config"
	"github.com/RyanLisse/opencode-rs/internal/event"
	"github.com/RyanLisse/opencode-rs/internal/logging"
	"github.com/RyanLisse/opencode-rs/internal/profile"
	"github.com/RyanLisse/opencode-rs/internal/sandbox"
)

// App holds the collaborators commands run against. main constructs one App,
// hands it to NewRootCmd, and every command reaches its dependencies through
// it instead of package-level state.
type App struct {
	// ConfigPath and Verbose are bound to the root command's persistent
	// flags and are read by Init after flag parsing.
	ConfigPath string
	Verbose    bool

	Config      *config.Config
	Logger      *logging.Logger
	Bus         *event.Bus
	Profiles    *profile.Table
	Runner      sandbox.Runner
	Registry    *agent.Registry
	Checkpoints *checkpoint.Manager

	watcher *profile.Watcher
}

// NewApp returns an App with no collaborators constructed yet. Init fills in
// whatever is still nil, so tests can pre-populate fields with fakes.
func NewApp() *App {
	return &App{}
}

// Init loads configuration and constructs the remaining collaborators. It
// runs as the root command's PersistentPreRunE, after flags are parsed.
func (a *App) Init() error {
	if a.Config == nil {
		initViper(a.ConfigPath)
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		a.Config = cfg
	}

	if a.Logger == nil {
		level := a.Config.Logging.Level
		if a.Verbose {
			level = logging.LevelDebug
		}
		logger, err := logging.NewLogger(a.Config.Logging.Dir, level)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		a.Logger = logger
	}

	if a.Bus == nil {
		a.Bus = event.NewBus()
	}

	if a.Profiles == nil {
		path := profile.ResolvePath(a.Config.Profile.Path)
		table, err := profile.Load(path, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to load profiles: %w", err)
		}
		a.Profiles = table

		// Hot reload is best effort; a watcher that cannot start never
		// blocks the CLI.
		if watcher, werr := profile.NewWatcher(table, a.Bus, a.Logger); werr == nil {
			watcher.Start()
			a.watcher = watcher
		} else {
			a.Logger.Warn("profile watcher unavailable", "error", werr)
		}
	}

	if a.Runner == nil {
		a.Runner = sandbox.NewCLIRunner(a.Config.Sandbox.Tool, a.Logger)
	}

	if a.Registry == nil {
		a.Registry = agent.New(a.Runner, a.Profiles, a.Config, a.Logger, a.Bus)
	}

	if a.Checkpoints == nil {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		a.Checkpoints = checkpoint.NewManager(cwd, a.Config.Branch.Prefix, a.Bus, a.Logger)
	}

	return nil
}

// Shutdown stops the profile watcher, running agents, and the log file.
func (a *App) Shutdown() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.Registry != nil {
		a.Registry.Shutdown()
	}
	if a.Logger != nil {
		_ = a.Logger.Close()
	}
}

func initViper(cfgFile string) {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OPENCODE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., OPENCODE_SWARM_MAX_PARALLEL for swarm.max_parallel
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
