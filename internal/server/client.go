package server

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

var scanStreamDesc = grpc.StreamDesc{StreamName: "Scan", ServerStreams: true}

// Client is a thin client of bytelense.v1.ScanService.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// ScanResult is what a finished Scan stream delivered.
type ScanResult struct {
	Assessment *entity.DetailedAssessment
	Error      *entity.ScanErrorEvent
}

// Scan streams one scan, calling onProgress for each progress event.
func (c *Client) Scan(ctx context.Context, req ScanRequest, onProgress func(entity.Progress)) (ScanResult, error) {
	in, err := utils.ToStruct(req)
	if err != nil {
		return ScanResult{}, err
	}
	stream, err := c.conn.NewStream(ctx, &scanStreamDesc, ScanMethod)
	if err != nil {
		return ScanResult{}, err
	}
	if err := stream.SendMsg(in); err != nil {
		return ScanResult{}, err
	}
	if err := stream.CloseSend(); err != nil {
		return ScanResult{}, err
	}

	var res ScanResult
	for {
		out := &structpb.Struct{}
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return res, err
		}
		var ev ScanEvent
		if err := utils.FromStruct(out, &ev); err != nil {
			return res, fmt.Errorf("decode event: %w", err)
		}
		switch ev.Type {
		case EventProgress:
			if onProgress != nil && ev.Progress != nil {
				onProgress(*ev.Progress)
			}
		case EventAssessment:
			res.Assessment = ev.Assessment
		case EventError:
			res.Error = ev.Error
		}
	}
}

func invoke[Resp any](ctx context.Context, conn grpc.ClientConnInterface, method string, req any) (Resp, error) {
	var resp Resp
	in, err := utils.ToStruct(req)
	if err != nil {
		return resp, err
	}
	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, method, in, out); err != nil {
		return resp, err
	}
	if err := utils.FromStruct(out, &resp); err != nil {
		return resp, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func (c *Client) GetDay(ctx context.Context, user, date string) (entity.DailyLedgerEntry, error) {
	return invoke[entity.DailyLedgerEntry](ctx, c.conn, GetDayMethod, DayRequest{User: user, Date: date})
}

func (c *Client) GetWeek(ctx context.Context, user, weekStart string) (entity.WeekSummary, error) {
	return invoke[entity.WeekSummary](ctx, c.conn, GetWeekMethod, WeekRequest{User: user, WeekStart: weekStart})
}

func (c *Client) ExportWeek(ctx context.Context, user, weekStart string) (ExportResponse, error) {
	return invoke[ExportResponse](ctx, c.conn, ExportWeekMethod, WeekRequest{User: user, WeekStart: weekStart})
}

func (c *Client) GetProfile(ctx context.Context, user string) (entity.UserProfile, error) {
	return invoke[entity.UserProfile](ctx, c.conn, GetProfileMethod, ProfileRequest{User: user})
}

func (c *Client) PutProfile(ctx context.Context, req PutProfileRequest) (entity.UserProfile, error) {
	return invoke[entity.UserProfile](ctx, c.conn, PutProfileMethod, req)
}
