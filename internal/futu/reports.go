package futu

import (
	"context"
	"time"

	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

// ReportService produces on-demand order and fill snapshots by querying
// every market the session spans. Rows seen through more than one market
// (HK and HK China Connect overlap) are deduplicated by vendor id; rows
// that fail to parse and markets whose query fails are skipped and logged
// so one bad row or one unreachable market never poisons a snapshot.
type ReportService struct {
	client  opend.Client
	session Session
	metrics *bridgeMetrics
	now     func() time.Time
}

// NewReportService builds the snapshot service for one resolved session.
func NewReportService(client opend.Client, session Session) *ReportService {
	return &ReportService{client: client, session: session, now: time.Now}
}

func (s *ReportService) setMetrics(m *bridgeMetrics) { s.metrics = m }

// OrderStatusReports returns the current order snapshot across markets.
func (s *ReportService) OrderStatusReports(ctx context.Context) ([]schema.OrderStatusReport, error) {
	seen := make(map[string]struct{})
	reports := make([]schema.OrderStatusReport, 0)
	for _, market := range s.session.Markets() {
		rows, err := s.client.GetOrderList(ctx, int32(s.session.Env), s.session.Account.AccID, int32(market))
		if err != nil {
			observability.Log().Warn("order market skipped",
				observability.F("market", int32(market)),
				observability.F("error", err.Error()))
			s.metrics.addMarketSkipped(ctx, "order")
			continue
		}
		for _, row := range rows {
			report, perr := parseOrderRecord(row, s.now())
			if perr != nil {
				observability.Log().Warn("order row skipped",
					observability.F("market", int32(market)),
					observability.F("error", perr.Error()))
				s.metrics.addRowSkipped(ctx, "order")
				continue
			}
			if _, dup := seen[report.VenueOrderID]; dup {
				continue
			}
			seen[report.VenueOrderID] = struct{}{}
			s.backfillVenue(&report.Instrument, market)
			reports = append(reports, report)
		}
	}
	return reports, nil
}

// FillReports returns the current execution snapshot across markets.
func (s *ReportService) FillReports(ctx context.Context) ([]schema.FillReport, error) {
	seen := make(map[string]struct{})
	reports := make([]schema.FillReport, 0)
	for _, market := range s.session.Markets() {
		rows, err := s.client.GetOrderFillList(ctx, int32(s.session.Env), s.session.Account.AccID, int32(market))
		if err != nil {
			observability.Log().Warn("fill market skipped",
				observability.F("market", int32(market)),
				observability.F("error", err.Error()))
			s.metrics.addMarketSkipped(ctx, "fill")
			continue
		}
		for _, row := range rows {
			report, perr := parseFillRecord(row, s.now())
			if perr != nil {
				observability.Log().Warn("fill row skipped",
					observability.F("market", int32(market)),
					observability.F("error", perr.Error()))
				s.metrics.addRowSkipped(ctx, "fill")
				continue
			}
			if _, dup := seen[report.FillID]; dup {
				continue
			}
			seen[report.FillID] = struct{}{}
			s.backfillVenue(&report.Instrument, market)
			reports = append(reports, report)
		}
	}
	return reports, nil
}

// backfillVenue resolves the listing venue from the trade market when the
// row carried no usable quote market.
func (s *ReportService) backfillVenue(id *schema.InstrumentID, market schema.TrdMarket) {
	if id.Venue == schema.VenueFutu {
		id.Venue = schema.VenueForTrdMarket(market)
	}
}
