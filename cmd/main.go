package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/latoulicious/Kitasan/internal/config"
	"github.com/latoulicious/Kitasan/pkg/cache"
	"github.com/latoulicious/Kitasan/pkg/credentials"
	"github.com/latoulicious/Kitasan/pkg/ingest"
	"github.com/latoulicious/Kitasan/pkg/lyrics"
	"github.com/latoulicious/Kitasan/pkg/player"
	"github.com/latoulicious/Kitasan/pkg/provider"
)

// logNotifier prints playback events; a chat frontend would subscribe here
// instead.
type logNotifier struct {
	logger *log.Logger
}

func (n logNotifier) TrackAdvanced(guildID string, t player.Track) {
	n.logger.Info("now playing", "guild", guildID, "title", t.Title, "duration", t.Duration)
}

func (n logNotifier) QueueEmptied(guildID string) {
	n.logger.Info("queue emptied", "guild", guildID)
}

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "kitasan",
	})

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load config", "err", err)
	}

	lookup, err := cache.NewKV[provider.TrackInfo](1024, cfg.LookupTTL)
	if err != nil {
		logger.Fatal("failed to create lookup cache", "err", err)
	}
	files, err := cache.NewFileCache(cfg.CacheDir, cfg.CacheLimitBytes, logger.WithPrefix("filecache"))
	if err != nil {
		logger.Fatal("failed to open stream cache", "err", err)
	}
	sweeper, err := cache.NewSweeper(files, "@every 30m", 24*time.Hour, logger.WithPrefix("sweeper"))
	if err != nil {
		logger.Fatal("failed to schedule cache sweep", "err", err)
	}
	sweeper.Start()

	youtube := provider.NewYouTube()

	var spotify provider.SearchTermSource
	var session *credentials.Session
	if cfg.SpotifyEnabled() {
		session = credentials.NewSession(
			credentials.SpotifyAcquirer(cfg.SpotifyClientID, cfg.SpotifyClientSecret),
			credentials.WithSessionLogger(logger.WithPrefix("credentials")),
		)
		if err := session.Start(context.Background()); err != nil {
			logger.Fatal("failed to initialize spotify credentials", "err", err)
		}
		spotify = provider.NewSpotify(session)
	} else {
		logger.Warn("spotify credentials not configured; cross-provider links disabled")
	}

	registry := player.NewRegistry(logger.WithPrefix("registry"),
		player.WithNotifier(logNotifier{logger: logger.WithPrefix("playback")}),
	)
	service := ingest.NewService(youtube, spotify, lookup, registry,
		ingest.WithServiceLogger(logger.WithPrefix("ingest")),
		ingest.WithDefaultPlaylist(cfg.DefaultPlaylist),
	)
	streams := ingest.NewStreamSource(youtube, files)
	fetcher, err := lyrics.NewFetcher(logger.WithPrefix("lyrics"))
	if err != nil {
		logger.Fatal("failed to create lyrics fetcher", "err", err)
	}

	console := &console{
		service:  service,
		registry: registry,
		streams:  streams,
		lyrics:   fetcher,
		logger:   logger,
	}
	go console.run()

	logger.Info("core is running, press CTRL-C to exit")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	if session != nil {
		session.Cleanup()
	}
	sweeper.Stop()
	registry.Shutdown()
}

// console is a minimal stdin frontend for driving the core without a chat
// gateway. Commands operate on one guild at a time:
//
//	guild <id>        switch guild
//	play <query>      resolve and queue
//	playnext <query>  resolve and queue at the front
//	skip [n]          skip tracks
//	unskip            undo the last skip
//	pause / resume / stop
//	seek <sec> / fseek <sec>
//	shuffle / loop / queue / np
//	move <from> <to> / remove <pos> / clear / guilds
//	stream            resolve the current track's stream handle
//	lyrics            fetch lyrics for the current track
type console struct {
	service  *ingest.Service
	registry *player.Registry
	streams  *ingest.StreamSource
	lyrics   *lyrics.Fetcher
	logger   *log.Logger
}

func (c *console) run() {
	guild := "console"
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		if cmd == "guild" && rest != "" {
			guild = rest
			fmt.Printf("using guild %s\n", guild)
			continue
		}
		if err := c.dispatch(guild, cmd, rest); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (c *console) dispatch(guild, cmd, rest string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p := c.registry.Get(guild)

	switch cmd {
	case "play", "playnext":
		res, err := c.service.AddQuery(ctx, ingest.AddRequest{
			GuildID:   guild,
			Query:     rest,
			Requester: "console",
			ToFront:   cmd == "playnext",
		})
		if err != nil {
			return err
		}
		for _, t := range res.Added {
			fmt.Printf("queued: %s (%ds)\n", t.Title, t.Duration)
		}
		return nil
	case "skip":
		n := 1
		if rest != "" {
			var err error
			if n, err = strconv.Atoi(rest); err != nil {
				return err
			}
		}
		return p.Skip(n, true)
	case "unskip":
		return p.Unskip()
	case "pause":
		return p.Pause()
	case "resume":
		return p.Resume()
	case "stop":
		p.Stop()
		return nil
	case "seek":
		sec, err := strconv.Atoi(rest)
		if err != nil {
			return err
		}
		return p.Seek(sec)
	case "fseek":
		sec, err := strconv.Atoi(rest)
		if err != nil {
			return err
		}
		return p.ForwardSeek(sec)
	case "shuffle":
		p.Shuffle()
		return nil
	case "loop":
		p.SetLoop(!p.Loop())
		fmt.Printf("loop: %v\n", p.Loop())
		return nil
	case "move":
		from, to, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("usage: move <from> <to>")
		}
		f, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return err
		}
		t, err := strconv.Atoi(strings.TrimSpace(to))
		if err != nil {
			return err
		}
		moved, err := p.Move(f, t)
		if err != nil {
			return err
		}
		fmt.Printf("moved: %s\n", moved.Title)
		return nil
	case "remove":
		pos, err := strconv.Atoi(rest)
		if err != nil {
			return err
		}
		removed, err := p.Remove(pos)
		if err != nil {
			return err
		}
		fmt.Printf("removed: %s\n", removed.Title)
		return nil
	case "clear":
		fmt.Printf("cleared %d tracks\n", p.Clear())
		return nil
	case "guilds":
		for _, id := range c.registry.List() {
			fmt.Println(id)
		}
		return nil
	case "queue":
		tracks, total := p.QueuePage(1, 10)
		fmt.Printf("%d upcoming\n", total)
		for i, t := range tracks {
			fmt.Printf("%2d. %s (%ds)\n", i+1, t.Title, t.Duration)
		}
		return nil
	case "np":
		t, ok := p.Current()
		if !ok {
			fmt.Println("nothing playing")
			return nil
		}
		fmt.Printf("%s [%s] %d/%ds\n", t.Title, p.Status(), p.Position(), t.EndPosition())
		return nil
	case "stream":
		t, ok := p.Current()
		if !ok {
			return player.ErrNotPlaying
		}
		h, err := c.streams.Handle(ctx, t)
		if err != nil {
			return err
		}
		fmt.Printf("stream: %s (%s)\n", h.URL, h.MimeType)
		return nil
	case "lyrics":
		t, ok := p.Current()
		if !ok {
			return player.ErrNotPlaying
		}
		r, err := c.lyrics.Lyrics(ctx, t.Title, "")
		if err != nil {
			return err
		}
		fmt.Println(r.Lyrics)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
