package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"amd/internal/adapters/discord"
	"amd/internal/config"
	"amd/internal/reactionroles"
	"amd/internal/rootapi"
	"amd/internal/scheduler"
	"amd/internal/store"
	"amd/internal/tasks"
	"amd/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (json or yaml)")
	flag.Parse()

	// Secrets usually live in a .env next to the binary during development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	manager := config.NewManager(cfgPath)
	cfg, err := manager.Load()
	if err != nil {
		return err
	}

	logSvc, log := logx.New(logConfig(cfg.Logging))
	defer logSvc.Close()
	manager.SetLogger(log)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	rootTimeout, err := config.ParseDurationOrDefault("root.timeout", cfg.Root.Timeout, 15*time.Second)
	if err != nil {
		return err
	}
	runTimeout, err := config.ParseDurationOrDefault("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout, 5*time.Minute)
	if err != nil {
		return err
	}

	client, err := discord.New(discord.Config{
		Token:          cfg.Discord.Token,
		SendRatePerSec: cfg.Discord.SendRatePerSec,
	}, log)
	if err != nil {
		return err
	}
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()
	logSvc.SetDiscordSink(client)

	if cfg.Discord.RolesMessageID != "" && len(cfg.Discord.ReactionRoles) > 0 {
		roles := reactionroles.New(client, cfg.Discord.RolesMessageID, cfg.Discord.ReactionRoles, log)
		client.OnReactionAdd(func(r *discordgo.MessageReaction) { roles.HandleAdd(ctx, r) })
		client.OnReactionRemove(func(r *discordgo.MessageReaction) { roles.HandleRemove(ctx, r) })
	}

	root := rootapi.New(cfg.Root.URL, rootTimeout, log)

	sched := scheduler.New(scheduler.Config{
		DefaultTimeout: runTimeout,
		HistorySize:    cfg.Scheduler.HistorySize,
	}, log)

	if cfg.Storage != nil {
		runStore, err := store.Open(cfg.Storage.Path, log)
		if err != nil {
			return err
		}
		defer runStore.Close()
		sched.SetStore(runStore)
	}

	if err := sched.Register(
		tasks.NewStatusUpdateCheck(tasks.StatusUpdateConfig{
			GroupChannelIDs: cfg.Discord.GroupChannelIDs,
			ReportChannelID: cfg.Discord.StatusUpdateChannelID,
			ExemptAuthorIDs: cfg.Discord.ExemptAuthorIDs,
		}, root, client, loc, log),
		tasks.NewLabAttendanceCheck(tasks.LabAttendanceConfig{
			ReportChannelID: cfg.Discord.LabChannelID,
		}, root, client, loc, log),
	); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}

	go watchConfig(ctx, manager, logSvc, log)
	notifySystemd(ctx, log)

	log.Info("daemon up", logx.String("config", cfgPath), logx.String("timezone", loc.String()))
	<-ctx.Done()

	log.Info("shutting down")
	sched.Wait()
	return nil
}

// watchConfig hot-reloads the logging section when the config file changes.
// Channel ids and schedules stay fixed for the process lifetime; changing
// those means a restart.
func watchConfig(ctx context.Context, manager *config.Manager, logSvc *logx.Service, log logx.Logger) {
	sub := manager.Subscribe(1)
	defer manager.Unsubscribe(sub)

	go func() {
		if err := manager.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Warn("config watcher stopped", logx.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-sub:
			logSvc.Apply(logConfig(cfg.Logging))
			log.Info("logging config reloaded", logx.String("level", cfg.Logging.Level))
		}
	}
}

// notifySystemd reports readiness and feeds the watchdog when running as a
// systemd service; it is a no-op otherwise.
func notifySystemd(ctx context.Context, log logx.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify failed", logx.Err(err))
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	go func() {
		tick := time.NewTicker(interval / 2)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
				return
			case <-tick.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func logConfig(lc config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Discord: logx.DiscordConfig{
			Enabled:    lc.Discord.Enabled,
			ChannelID:  lc.Discord.ChannelID,
			MinLevel:   lc.Discord.MinLevel,
			RatePerSec: lc.Discord.RatePerSec,
		},
	}
}
