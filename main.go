package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Necroforger/dgrouter/exrouter"
	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/cufee/botto-guardian/admission"
	"github.com/cufee/botto-guardian/config"
	"github.com/cufee/botto-guardian/database"
	"github.com/cufee/botto-guardian/fetchhash"
	"github.com/cufee/botto-guardian/handlers"
	"github.com/cufee/botto-guardian/hashindex"
	"github.com/cufee/botto-guardian/moderation"
	"github.com/cufee/botto-guardian/profiles"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// .env is optional, the environment may carry everything already
	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration failed", "err", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("db open failed", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	profileStore, err := profiles.NewStore(db)
	if err != nil {
		logger.Error("profile store init failed", "err", err)
		os.Exit(1)
	}
	index, err := hashindex.Load(db, cfg.IndexCap, logger)
	if err != nil {
		logger.Error("hash index load failed", "err", err)
		os.Exit(1)
	}
	scorer, err := moderation.LoadKeywordScorer(cfg.BlocklistPath)
	if err != nil {
		logger.Error("blocklist load failed", "path", cfg.BlocklistPath, "err", err)
		os.Exit(1)
	}
	fetcher := fetchhash.New(cfg.FetchTimeout, cfg.MaxImageBytes)

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		logger.Error("session init failed", "err", err)
		os.Exit(1)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	platform := &handlers.DiscordPlatform{Ses: session}
	controller := admission.NewController(db, platform, logger)
	pipeline := moderation.NewPipeline(scorer, fetcher, index, platform, logger)

	// One message can wait on several image fetches.
	eventTimeout := cfg.FetchTimeout * 4
	bot := handlers.New(profileStore, controller, pipeline, index, fetcher, logger, cfg.Workers, eventTimeout)

	router := exrouter.New()
	router.On("setup", bot.SetupHandler).Desc("Register this server's moderation profile")
	router.On("teardown", bot.TeardownHandler).Desc("Remove this server's moderation profile")
	router.On("profile", bot.ProfileHandler).Desc("Show this server's moderation profile")
	router.On("admit", bot.AdmitHandler).Desc("Admit restricted members")
	router.On("revoke", bot.RevokeHandler).Desc("Restrict trusted members")
	router.On("flaghash", bot.FlagHashHandler).Desc("Flag an image hash code")
	router.On("clearhash", bot.ClearHashHandler).Desc("Clear an image hash code")
	router.On("blockimage", bot.BlockImageHandler).Desc("Flag every image of a message and delete it")

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		router.FindAndExecute(s, cfg.Prefix, s.State.User.ID, m.Message)
	})
	session.AddHandler(bot.MemberJoin)
	session.AddHandler(bot.MemberLeave)
	session.AddHandler(bot.MessageScreen)

	if err := session.Open(); err != nil {
		logger.Error("gateway connection failed", "err", err)
		os.Exit(1)
	}
	defer session.Close()
	logger.Info("guardian is running", "prefix", cfg.Prefix, "workers", cfg.Workers)

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
	logger.Info("shutting down")
}
