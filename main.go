package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	var flags Flags
	flags.AddFlags(pflag.CommandLine)
	pflag.Parse()

	config, err := LoadConfig(flags)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetLevel(config.LogLevel)

	// Redis
	options, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	db := redis.NewClient(options)
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("Cannot reach redis: %v", err)
	}
	cancelPing()

	// Startup lookups run once, like a page load.
	lookupClient := &http.Client{Timeout: config.BackendTimeout}
	lookupCtx, cancelLookup := context.WithTimeout(context.Background(), config.BackendTimeout)
	geo, err := LocateClient(lookupCtx, lookupClient, config.ClientIPInfoURL, config.CountryInfoURL)
	cancelLookup()
	if err != nil {
		log.WithError(err).Warn("Client lookup incomplete, continuing without defaults")
	}

	backend, err := NewBackendClient(config.APIBaseURL, config.BackendTimeout)
	if err != nil {
		log.Fatalf("Cannot create backend client: %v", err)
	}
	defer backend.CloseIdleConnections()

	messages := defaultMessages
	persister := NewClientState(db, config.CookieDomain, config.LoggedInDays)
	challenge := NewHTTPChallengeProvider(config.ChallengeURL, config.ChallengeSiteKey, lookupClient)

	sessions := NewSessionRegistry(config.SessionTTL, config.Locale, geo)
	defer sessions.Stop()

	guides := NewGuideFetcher(config.GuidesURL, lookupClient, time.Hour)
	defer guides.Stop()

	bot := NewBot(
		config,
		sessions,
		NewWorkflow(backend, challenge, persister, messages),
		NewAccounts(backend, persister, messages),
		NewSubscriptions(backend, persister, messages),
		guides,
		messages,
	)

	// Ops
	var ready atomic.Bool
	RegisterMetrics(prometheus.DefaultRegisterer)
	ops := NewOpsServer(config.OpsAddr, NewOpsRouter(prometheus.DefaultGatherer, ready.Load))
	ops.Start()

	// Discord
	session, err := discordgo.New("Bot " + config.BotToken)
	if err != nil {
		log.Fatalf("Invalid bot parameters: %v", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.WithFields(log.Fields{
			"username": s.State.User.Username,
			"guilds":   len(r.Guilds),
		}).Infof("Logged in, connected to %d server%s", len(r.Guilds), Plural(len(r.Guilds)))
		ready.Store(true)
	})
	session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		ready.Store(false)
	})
	session.AddHandler(bot.HandleInteraction)

	if err := session.Open(); err != nil {
		log.Fatalf("Cannot open the session: %v", err)
	}
	defer session.Close()

	commandDefinitions := bot.Commands()
	log.Infof("Adding %d command%s...", len(commandDefinitions), Plural(len(commandDefinitions)))
	registeredCommands, err := session.ApplicationCommandBulkOverwrite(session.State.User.ID, config.TargetGuild, commandDefinitions)
	if err != nil {
		log.Fatalf("Failed while registering commands: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	log.Info("Press Ctrl+C to exit")
	<-stop

	if config.RemoveCommands {
		log.Infof("Removing %d command%s...", len(registeredCommands), Plural(len(registeredCommands)))
		for _, command := range registeredCommands {
			if err := session.ApplicationCommandDelete(session.State.User.ID, config.TargetGuild, command.ID); err != nil {
				log.WithError(err).Errorf("Cannot delete '%v' command", command.Name)
			}
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Ops server did not shut down cleanly")
	}

	log.Info("Gracefully shutting down.")
}
