package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dkeye/Duo/internal/adapters/api"
	"github.com/dkeye/Duo/internal/adapters/media"
	"github.com/dkeye/Duo/internal/domain"
)

func renderRooms(out io.Writer, rooms []api.Room) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Room", "Members"})
	for _, r := range rooms {
		t.AppendRow(table.Row{r.ID, fmt.Sprintf("%d/%d", r.MemberCount, domain.RoomCapacity)})
	}
	t.Render()
}

// renderStats prints what was received per remote track once the call ends.
func renderStats(out io.Writer, stats []media.TrackStats) {
	if len(stats) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("📊 Received")
	t.AppendHeader(table.Row{"Kind", "Track", "Packets", "Bytes"})
	var packets, bytes uint64
	for _, st := range stats {
		t.AppendRow(table.Row{st.Kind, st.ID, st.Packets, st.Bytes})
		packets += st.Packets
		bytes += st.Bytes
	}
	t.AppendFooter(table.Row{"", "Total", packets, bytes})
	t.Render()
}
