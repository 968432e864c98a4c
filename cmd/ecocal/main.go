package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecocal/internal/agenda"
	"ecocal/internal/calendar"
	"ecocal/internal/config"
	"ecocal/internal/discord"
	"ecocal/internal/ics"
	appLog "ecocal/internal/log"
	"ecocal/internal/notify"
	"ecocal/internal/recurring"
	"ecocal/internal/scheduler"
	"ecocal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	run        string
	dump       bool
}

func main() {
	flags := parseFlags()

	if err := config.LoadEnv(flags.envPath); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envPath)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("ecocal starting", "version", version)

	displayLoc, sourceLoc, err := conf.Locations()
	if err != nil {
		appLog.Error("invalid timezone", err)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"source_timezone", conf.SourceTimezone,
		"calendar_url", conf.Calendar.URL,
		"browser", conf.Calendar.Browser,
		"weekly", conf.Schedule.Weekly,
		"daily", conf.Schedule.Daily,
		"recurring", conf.Recurring.Enabled,
		"trading_day_aware", conf.Recurring.TradingDayAware,
		"guild_sync", conf.Discord.GuildID != "",
		"run", flags.run,
		"dump", flags.dump,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := newBuilder(conf, displayLoc, sourceLoc)

	if flags.dump {
		if err := dumpAgenda(ctx, builder, conf.Schedule.WeeklyDays); err != nil {
			appLog.Error("dump failed", err)
			os.Exit(1)
		}
		return
	}

	sched, err := newScheduler(conf, builder, displayLoc)
	if err != nil {
		appLog.Warn("discord delivery disabled; serving HTTP only", "reason", err.Error())
		if flags.run != "" {
			os.Exit(1)
		}
	}

	if flags.run != "" {
		if err := sched.RunNow(ctx, jobName(flags.run)); err != nil {
			appLog.Error("run failed", err, "job", flags.run)
			os.Exit(1)
		}
		return
	}

	var jobs web.JobRunner
	if sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
		jobs = sched
	}

	if err := web.StartServer(ctx, conf, builder, jobs); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("ecocal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/ecocal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to a .env file with DISCORD_TOKEN, CHANNEL_ID, GUILD_ID")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.run, "run", "", "Run one job (weekly or daily) and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "Print the weekly agenda as iCalendar to stdout and exit")

	flag.Parse()

	return cfg
}

func newBuilder(conf *config.Config, displayLoc, sourceLoc *time.Location) *agenda.Builder {
	var fetcher calendar.DocumentFetcher
	if conf.Calendar.Browser {
		fetcher = &calendar.BrowserFetcher{
			URL:       conf.Calendar.URL,
			UserAgent: conf.Calendar.UserAgent,
			Timeout:   conf.Calendar.Timeout,
		}
	} else {
		fetcher = calendar.NewHTTPFetcher(conf.Calendar.URL, conf.Calendar.UserAgent, conf.Calendar.Timeout)
	}

	return &agenda.Builder{
		Scraper: &calendar.Scraper{
			Fetcher: fetcher,
			Parser:  calendar.NewParser(sourceLoc, displayLoc),
		},
		Generator: &recurring.Generator{
			DisplayLoc:      displayLoc,
			SourceLoc:       sourceLoc,
			TradingDayAware: conf.Recurring.TradingDayAware,
		},
		IncludeRecurring: conf.Recurring.Enabled,
		DailyDays:        conf.Schedule.DailyDays,
		DisplayLoc:       displayLoc,
	}
}

func newScheduler(conf *config.Config, builder *agenda.Builder, displayLoc *time.Location) (*scheduler.Scheduler, error) {
	if err := conf.DeliveryReady(); err != nil {
		return nil, err
	}
	client, err := discord.New(conf.Discord.APIBase, conf.Discord.Token, 0)
	if err != nil {
		return nil, err
	}

	svc := &notify.Service{
		Builder:    builder,
		Publisher:  client,
		ChannelID:  conf.Discord.ChannelID,
		GuildID:    conf.Discord.GuildID,
		WeeklyDays: conf.Schedule.WeeklyDays,
		DisplayLoc: displayLoc,
	}

	sched := scheduler.New(displayLoc, conf.Schedule.JobTimeout)
	jobs := []scheduler.Job{
		{Name: scheduler.WeeklyAgenda, Schedule: conf.Schedule.Weekly, Run: svc.RunWeekly},
		{Name: scheduler.DailyReminder, Schedule: conf.Schedule.Daily, Run: svc.RunDaily},
	}
	for _, j := range jobs {
		if err := sched.Register(j); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func jobName(flagValue string) string {
	switch flagValue {
	case "weekly":
		return scheduler.WeeklyAgenda
	case "daily":
		return scheduler.DailyReminder
	default:
		return flagValue
	}
}

func dumpAgenda(ctx context.Context, builder *agenda.Builder, days int) error {
	built := builder.Weekly(ctx, days)
	if built.Failure != calendar.FailureNone && len(built.Events) == 0 {
		return errors.New("calendar unavailable and no recurring events")
	}
	body, err := ics.Render(agenda.Annotate(built.Events), ics.DefaultProdID, built.GeneratedAt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, string(body))
	return err
}
