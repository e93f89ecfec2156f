// Package api is a small client for the relay's room endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dkeye/Duo/internal/core"
	"github.com/dkeye/Duo/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

type Room struct {
	ID          domain.RoomID    `json:"id"`
	MemberCount int              `json:"member_count"`
	Members     []core.MemberDTO `json:"members,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

type Client struct {
	r *resty.Client
}

// New returns a client rooted at baseURL, e.g. http://localhost:8080/api.
func New(baseURL string) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{r: r}
}

func (c *Client) ListRooms(ctx context.Context) ([]core.RoomInfo, error) {
	var out struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	res, err := c.r.R().SetContext(ctx).SetResult(&out).SetError(&apiError{}).Get("/rooms")
	if err := check(res, err); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

// CreateRoom asks the relay for a fresh room name.
func (c *Client) CreateRoom(ctx context.Context) (domain.RoomID, error) {
	var out Room
	res, err := c.r.R().SetContext(ctx).SetResult(&out).SetError(&apiError{}).Post("/rooms")
	if err := check(res, err); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("empty room id in response")
	}
	return out.ID, nil
}

func (c *Client) GetRoom(ctx context.Context, id domain.RoomID) (*Room, error) {
	var out Room
	res, err := c.r.R().SetContext(ctx).
		SetPathParam("id", string(id)).
		SetResult(&out).SetError(&apiError{}).
		Get("/rooms/{id}")
	if err := check(res, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func check(res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !res.IsError() {
		return nil
	}
	if res.StatusCode() == http.StatusNotFound {
		return ErrRoomNotFound
	}
	if e, ok := res.Error().(*apiError); ok && e.Error != "" {
		return fmt.Errorf("%s: %s", res.Status(), e.Error)
	}
	return fmt.Errorf("unexpected status %s", res.Status())
}
