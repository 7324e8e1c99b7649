// Package server exposes the scan pipeline and ledger reads as the
// bytelense.v1.ScanService gRPC service. Messages travel as
// google.protobuf.Struct values, so no generated code is needed.
package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/pipeline"
	"github.com/joseph-ayodele/bytelense/internal/profiles"
	"github.com/joseph-ayodele/bytelense/internal/utils"
)

const serviceName = "bytelense.v1.ScanService"

// Full method names.
const (
	ScanMethod       = "/" + serviceName + "/Scan"
	GetDayMethod     = "/" + serviceName + "/GetDay"
	GetWeekMethod    = "/" + serviceName + "/GetWeek"
	ExportWeekMethod = "/" + serviceName + "/ExportWeek"
	GetProfileMethod = "/" + serviceName + "/GetProfile"
	PutProfileMethod = "/" + serviceName + "/PutProfile"
)

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (entity.DetailedAssessment, error)
}

// LedgerReader serves day and week reads.
type LedgerReader interface {
	GetDay(ctx context.Context, user, day string) (entity.DailyLedgerEntry, error)
	GetWeek(ctx context.Context, user, weekStart string) (entity.WeekSummary, error)
}

// WeekExporter renders a week as a spreadsheet.
type WeekExporter interface {
	ExportWeekXLSX(ctx context.Context, user, weekStart string) ([]byte, error)
}

// ProfileService reads and writes user profiles.
type ProfileService interface {
	Upsert(ctx context.Context, req profiles.UpsertProfileRequest) (entity.UserProfile, error)
	GetProfile(ctx context.Context, user string) (entity.UserProfile, error)
}

// ScanService is the server-side contract of bytelense.v1.ScanService.
type ScanService interface {
	Scan(ctx context.Context, req ScanRequest, send func(ScanEvent) error) error
	GetDay(ctx context.Context, req DayRequest) (entity.DailyLedgerEntry, error)
	GetWeek(ctx context.Context, req WeekRequest) (entity.WeekSummary, error)
	ExportWeek(ctx context.Context, req WeekRequest) (ExportResponse, error)
	GetProfile(ctx context.Context, req ProfileRequest) (entity.UserProfile, error)
	PutProfile(ctx context.Context, req PutProfileRequest) (entity.UserProfile, error)
}

var scanServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ScanService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDay", Handler: unary(GetDayMethod, ScanService.GetDay)},
		{MethodName: "GetWeek", Handler: unary(GetWeekMethod, ScanService.GetWeek)},
		{MethodName: "ExportWeek", Handler: unary(ExportWeekMethod, ScanService.ExportWeek)},
		{MethodName: "GetProfile", Handler: unary(GetProfileMethod, ScanService.GetProfile)},
		{MethodName: "PutProfile", Handler: unary(PutProfileMethod, ScanService.PutProfile)},
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Scan",
		Handler:       scanHandler,
		ServerStreams: true,
	}},
	Metadata: "bytelense/v1/scan.proto",
}

// RegisterScanService registers srv on a gRPC server.
func RegisterScanService(s grpc.ServiceRegistrar, srv ScanService) {
	s.RegisterService(&scanServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(ScanService, context.Context, Req) (Resp, error)) grpc.MethodHandler {
	handle := func(srv any, ctx context.Context, in *structpb.Struct) (any, error) {
		var req Req
		if err := utils.FromStruct(in, &req); err != nil {
			return nil, common.InvalidArgumentErrorf("decode request: %v", err)
		}
		resp, err := call(srv.(ScanService), ctx, req)
		if err != nil {
			return nil, common.ToStatus(err)
		}
		out, err := utils.ToStruct(resp)
		if err != nil {
			return nil, common.InternalErrorf("encode response: %v", err)
		}
		return out, nil
	}
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return handle(srv, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return handle(srv, ctx, req.(*structpb.Struct))
		})
	}
}

func scanHandler(srv any, stream grpc.ServerStream) error {
	in := &structpb.Struct{}
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	var req ScanRequest
	if err := utils.FromStruct(in, &req); err != nil {
		return common.InvalidArgumentErrorf("decode request: %v", err)
	}
	err := srv.(ScanService).Scan(stream.Context(), req, func(ev ScanEvent) error {
		st, err := utils.ToStruct(ev)
		if err != nil {
			return common.InternalErrorf("encode event: %v", err)
		}
		return stream.SendMsg(st)
	})
	return common.ToStatus(err)
}

// ScanServer implements ScanService over the pipeline and the ledger.
type ScanServer struct {
	scanner  Scanner
	ledger   LedgerReader
	exporter WeekExporter
	profiles ProfileService
	logger   *slog.Logger
}

func NewScanServer(scanner Scanner, ledger LedgerReader, exporter WeekExporter, profiles ProfileService, logger *slog.Logger) *ScanServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanServer{scanner: scanner, ledger: ledger, exporter: exporter, profiles: profiles, logger: logger}
}
