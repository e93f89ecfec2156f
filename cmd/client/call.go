package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dkeye/Duo/internal/adapters/api"
	"github.com/dkeye/Duo/internal/adapters/media"
	"github.com/dkeye/Duo/internal/adapters/rtc"
	"github.com/dkeye/Duo/internal/adapters/transport"
	"github.com/dkeye/Duo/internal/domain"
	"github.com/dkeye/Duo/internal/session"
)

type callOptions struct {
	room    string
	noAudio bool
	noVideo bool
}

func newCallCmd() *cobra.Command {
	var opts callOptions
	cmd := &cobra.Command{
		Use:   "call [room]",
		Short: "Join a room and run a call",
		Long: `Join a room and run a call with the other person in it.

Without a room name a fresh one is reserved on the relay and printed so it
can be shared. While the call runs, type "a" to toggle audio, "v" to toggle
video, "d" to dismiss the last error and "q" to hang up.

Examples:
  duo call
  duo call standup
  duo call --room standup --no-video`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := pickRoom(opts.room, args)
			if err != nil {
				return err
			}
			return runCall(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), raw, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.room, "room", "r", "", "room to join")
	cmd.Flags().BoolVar(&opts.noAudio, "no-audio", false, "do not send audio")
	cmd.Flags().BoolVar(&opts.noVideo, "no-video", false, "do not send video")
	return cmd
}

func pickRoom(flag string, args []string) (string, error) {
	switch {
	case len(args) == 1 && flag != "" && strings.TrimSpace(args[0]) != strings.TrimSpace(flag):
		return "", fmt.Errorf("room given twice: %q and %q", args[0], flag)
	case len(args) == 1:
		return args[0], nil
	default:
		return flag, nil
	}
}

func runCall(parent context.Context, in io.Reader, out io.Writer, raw string, opts callOptions) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var roomID domain.RoomID
	if strings.TrimSpace(raw) == "" {
		id, err := api.New(cfg.APIURL).CreateRoom(ctx)
		if err != nil {
			return fmt.Errorf("reserve room: %w", err)
		}
		roomID = id
		fmt.Fprintf(out, "🔗 Room %s, share it with the other person\n", roomID)
	} else {
		id, err := domain.ParseRoomID(raw)
		if err != nil {
			return err
		}
		roomID = id
	}

	peers, err := rtc.NewFactory(rtc.Options{ICEServers: cfg.ICEServers})
	if err != nil {
		return err
	}
	sink := media.NewSink()
	printer := newStatusPrinter(out)

	ctrl := session.New(session.Config{
		RoomID:         roomID,
		OfferFallback:  cfg.OfferFallback,
		HangupGrace:    cfg.HangupGrace,
		ConnectTimeout: cfg.ConnectTimeout,
	}, session.Deps{
		Media:    media.NewSource(media.Options{Audio: !opts.noAudio, Video: !opts.noVideo}),
		Peers:    peers,
		Dialer:   transport.NewDialer(cfg.ServerURL),
		Sink:     sink,
		Observer: printer.observe,
	})

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	go readCommands(in, ctrl)

	<-ctrl.Done()
	renderStats(out, sink.Stats())

	snap := ctrl.Snapshot()
	if snap.State == session.StateFailed {
		if snap.Err != nil {
			return snap.Err
		}
		return errors.New("call failed")
	}
	return nil
}

func readCommands(in io.Reader, ctrl *session.Controller) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		switch strings.TrimSpace(strings.ToLower(sc.Text())) {
		case "a":
			ctrl.ToggleAudio()
		case "v":
			ctrl.ToggleVideo()
		case "d":
			ctrl.DismissError()
		case "q":
			ctrl.Hangup()
			return
		}
	}
}

// statusPrinter writes a line whenever something user-visible changes.
type statusPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	last session.Snapshot
	seen bool
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out}
}

func (p *statusPrinter) observe(s session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.last
	p.last = s
	first := !p.seen
	p.seen = true

	if first || s.State != prev.State {
		p.printState(s)
	}
	if s.Err != nil && s.Err != prev.Err {
		fmt.Fprintf(p.out, "⚠️  %s\n", s.Err.Message)
	}
	if !first && s.AudioMuted != prev.AudioMuted {
		fmt.Fprintf(p.out, "🎙  audio %s\n", onOff(!s.AudioMuted))
	}
	if !first && s.VideoOff != prev.VideoOff {
		fmt.Fprintf(p.out, "📷 video %s\n", onOff(!s.VideoOff))
	}
}

func (p *statusPrinter) printState(s session.Snapshot) {
	switch s.State {
	case session.StateJoining:
		fmt.Fprintln(p.out, "⏳ Joining room...")
	case session.StateRoleElection:
		fmt.Fprintln(p.out, "👋 Waiting for the other person...")
	case session.StateNegotiating:
		fmt.Fprintf(p.out, "🤝 Negotiating as %s\n", s.Role)
	case session.StateConnected:
		fmt.Fprintln(p.out, "✅ Connected")
	case session.StateEnded:
		fmt.Fprintf(p.out, "👋 Call ended (%s)\n", s.EndReason)
	case session.StateFailed:
		fmt.Fprintln(p.out, "❌ Call failed")
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
