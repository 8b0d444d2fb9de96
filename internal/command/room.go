package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/beamshare/internal/broker"
	"github.com/BioHazard786/beamshare/internal/transfer"
	"github.com/BioHazard786/beamshare/internal/ui"
)

var ErrRoomNotFound = errors.New("room not found")

func newRoomCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "room <room-code|url>",
		Short: "Show whether a room exists and has space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := parseRoomInput(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			info, err := fetchRoom(cmd.Context(), http.DefaultClient, cfg.BaseURL(), roomID)
			if err != nil {
				return err
			}
			printRoom(info)
			return nil
		},
	}
}

type roomResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	broker.RoomInfo
}

// fetchRoom queries GET /room/:roomId on the broker.
func fetchRoom(ctx context.Context, client *http.Client, baseURL, roomID string) (*broker.RoomInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/room/"+url.PathEscape(roomID), nil)
	if err != nil {
		return nil, transfer.NewError("room status", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, transfer.NewError("room status", err)
	}
	defer resp.Body.Close()

	var body roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, transfer.NewError("room status", fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, transfer.WrapError("room status", ErrRoomNotFound, roomID)
	case !body.Success:
		return nil, brokerError("room status", body.Message)
	}
	return &body.RoomInfo, nil
}

func printRoom(info *broker.RoomInfo) {
	ui.PrintInfof("Room %s: %d/%d members", ui.BoldStyle.Render(info.RoomID), info.MemberCount, info.MaxMembers)
	if info.Available {
		ui.PrintSuccess("Room is available")
	} else {
		ui.PrintWarning("Room is full")
	}
	ui.PrintInfof("Created %s, last active %s",
		time.UnixMilli(info.CreatedAt).Format(time.Kitchen),
		time.UnixMilli(info.LastActivity).Format(time.Kitchen),
	)
}
