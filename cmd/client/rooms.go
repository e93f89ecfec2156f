package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkeye/Duo/internal/adapters/api"
	"github.com/dkeye/Duo/internal/domain"
)

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List active rooms on the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := api.New(cfg.APIURL).ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rooms) == 0 {
				fmt.Fprintln(out, "no active rooms")
				return nil
			}
			renderRooms(out, rooms)
			return nil
		},
	}
}

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Create or inspect a room",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Reserve a fresh room name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.New(cfg.APIURL).CreateRoom(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <room>",
		Short: "Show who is in a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseRoomID(args[0])
			if err != nil {
				return err
			}
			room, err := api.New(cfg.APIURL).GetRoom(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "room %s: %d/%d\n", room.ID, room.MemberCount, domain.RoomCapacity)
			for _, m := range room.Members {
				fmt.Fprintf(out, "  %s  joined %s\n", m.ID, m.JoinedAt.Format("15:04:05"))
			}
			return nil
		},
	})
	return cmd
}
