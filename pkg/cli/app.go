package cli

import (
	"os"

	"github.com/cloud-drive-tools/cdt/pkg/cache"
	"github.com/cloud-drive-tools/cdt/pkg/clouddrive"
	"github.com/cloud-drive-tools/cdt/pkg/common"
	"github.com/cloud-drive-tools/cdt/pkg/mount"
	"github.com/cloud-drive-tools/cdt/pkg/orchestrator"
	"github.com/cloud-drive-tools/cdt/pkg/runner"
	"github.com/cloud-drive-tools/cdt/pkg/types"
)

// app bundles the wired components the commands draw from.
type app struct {
	cfg     *types.AppConfig
	manager *common.ConfigManager[types.AppConfig]
	secret  *types.Secret
	target  types.MountTarget
	runner  runner.ProcessRunner
	prober  mount.Prober
	encfs   *mount.EncfsMounter
	mounts  *mount.Manager
	engine  *cache.Engine
}

// loadManager layers the --config file on top of the ambient configuration
// sources. The flag file must exist when set explicitly; the default path
// is loaded only when present so that CONFIG_PATH and CONFIG_JSON keep
// working without a vars.yaml in the working directory.
func loadManager() (*common.ConfigManager[types.AppConfig], error) {
	manager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}

	if rootCmd.PersistentFlags().Changed("config") {
		if err := manager.LoadFile(configPath); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(configPath); err == nil {
		if err := manager.LoadFile(configPath); err != nil {
			return nil, err
		}
	}

	return manager, nil
}

// loadApp loads and validates configuration, initializes logging, seals the
// passphrase, and wires the component graph. Configuration errors are fatal
// before any mount side effect.
func loadApp() (*app, error) {
	manager, err := loadManager()
	if err != nil {
		return nil, err
	}

	// A CONFIG_JSON payload is machine-generated by the parent process,
	// which already validated the key surface and stripped the passphrase.
	if !manager.FromEnvJSON() {
		if err := manager.Validate(types.RequiredConfigKeys, types.OptionalConfigKeys); err != nil {
			return nil, err
		}
	}

	cfg := manager.GetConfig()
	common.InitLogging(cfg.DebugMode || debugFlag, cfg.PrettyLogs || prettyFlag)

	secret := types.NewSecret(cfg.EncfsPass)
	cfg.EncfsPass = ""

	osRunner := runner.NewOSRunner()
	prober := mount.NewOSProber()
	encfs := mount.NewEncfsMounter(osRunner, secret, cfg.Encfs6Config)
	launcher := mount.NewSupervisorLauncher(&cfg, osRunner)

	return &app{
		cfg:     &cfg,
		manager: manager,
		secret:  secret,
		target:  types.TargetFromConfig(&cfg),
		runner:  osRunner,
		prober:  prober,
		encfs:   encfs,
		mounts:  mount.NewManager(osRunner, prober, encfs, launcher, mount.Options{}),
		engine:  cache.NewEngine(cfg.CacheRoot(), cfg.Retention(), cache.NewOpenFilesChecker(cfg.CacheRoot())),
	}, nil
}

func (a *app) uploader() *clouddrive.Uploader {
	return clouddrive.NewUploader(a.cfg, a.target, a.runner, a.encfs, a.engine)
}

func (a *app) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(a.mounts, a.engine, []types.MountTarget{a.target})
}

func (a *app) checkDependencies() error {
	return clouddrive.CheckDependencies(a.cfg)
}
