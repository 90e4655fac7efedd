package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weedbox/pokerclient"
	"github.com/weedbox/pokerclient/channel"
	"github.com/weedbox/pokerclient/lobby"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	roomCode := getEnv("ROOM_CODE", "demo")
	viewerID := getEnv("VIEWER_ID", "viewer")

	// Bootstrap via lobby API
	lobbyClient := lobby.NewClient(lobby.NewConfigFromEnv(), lobby.WithLogger(log.Logger))

	roomInfo, err := lobbyClient.GetRoom(roomCode)
	if err != nil {
		log.Fatal().Err(err).Str("room_code", roomCode).Msg("failed to resolve room")
	}

	if theme, err := lobbyClient.GetTheme(); err == nil {
		log.Info().Str("theme", theme).Msg("table theme")
	}
	if credits, err := lobbyClient.GetBalance(viewerID); err == nil {
		log.Info().Int64("credits", credits).Msg("wallet balance")
	}

	log.Info().
		Str("room_code", roomInfo.Code).
		Int("capacity", roomInfo.Capacity).
		Str("channel_url", roomInfo.ChannelURL).
		Msg("joining room")

	ch := channel.NewWebSocketChannel(
		channel.DefaultConfig(roomInfo.ChannelURL),
		channel.WithLogger(log.Logger),
	)

	options := pokerclient.NewViewEngineOptions()
	options.ViewerID = viewerID

	engine := pokerclient.NewViewEngine(options,
		pokerclient.WithChannel(ch),
		pokerclient.WithLogger(log.Logger),
	)

	engine.OnViewUpdated(func(room *pokerclient.Room) {
		if room == nil {
			return
		}
		if data, err := room.GetJSON(); err == nil {
			log.Info().RawJSON("room", []byte(data)).Msg("view updated")
		}
	})
	engine.OnPhaseChanged(func(phase pokerclient.HandPhase) {
		log.Info().Str("phase", string(phase)).Msg("phase changed")
	})
	engine.OnDegradedChanged(func(degraded bool) {
		log.Warn().Bool("degraded", degraded).Msg("connection state changed")
	})
	engine.OnNotice(func(notice pokerclient.Notice) {
		log.Info().Str("level", notice.Level).Str("message", notice.Message).Msg("notice")
	})
	engine.OnRoomExited(func(reason string) {
		log.Warn().Str("reason", reason).Msg("removed from room")
	})
	engine.OnAllPlayersReady(func() {
		log.Info().Msg("all players ready")
	})

	engine.Countdown().OnTick(func(seat int, remaining float64) {
		log.Debug().Int("seat", seat).Float64("remaining", remaining).Msg("turn countdown")
	})

	if err := engine.EnterRoom(roomInfo.Code); err != nil {
		log.Fatal().Err(err).Msg("failed to enter room")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	if err := engine.LeaveRoom(); err != nil {
		log.Error().Err(err).Msg("failed to leave room")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
