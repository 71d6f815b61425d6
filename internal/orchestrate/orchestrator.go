package orchestrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/core/metrics"
	"github.com/vietddude/regfetch/internal/core/retry"
	"github.com/vietddude/regfetch/internal/infra/upstream/ceidg"
	"github.com/vietddude/regfetch/internal/infra/upstream/courtreg"
	"github.com/vietddude/regfetch/internal/infra/upstream/statoffice"
	"github.com/vietddude/regfetch/internal/mapping"
)

// StatClient is the slice of the stat-office client the driver needs.
type StatClient interface {
	Classify(ctx context.Context, sid string, taxID domain.TaxID, correlationID string) (*domain.Classification, error)
	FullReport(ctx context.Context, sid string, regon domain.RegistryID, name statoffice.ReportName, correlationID string) (*statoffice.Report, error)
}

// CourtClient is the slice of the court registry client the driver needs.
type CourtClient interface {
	CurrentExtract(ctx context.Context, ns courtreg.Namespace, number, correlationID string) (*courtreg.Record, error)
}

// FirmClient is the slice of the entrepreneur registry client the driver needs.
type FirmClient interface {
	FindByTaxID(ctx context.Context, taxID domain.TaxID, correlationID string) (*ceidg.Firm, error)
}

// Sessions supplies and invalidates the stat-office session.
type Sessions interface {
	Get(ctx context.Context, correlationID string) (*domain.Session, error)
	Clear()
}

// Gate queues and serializes stat-office operations.
type Gate interface {
	Schedule(ctx context.Context, op func(ctx context.Context) error) error
}

// RecordMapper is the external data-mapping collaborator.
type RecordMapper interface {
	ToUnified(in mapping.Input) (*domain.UnifiedRecord, *fault.Failure)
	ToInactive(in mapping.Input) (*domain.UnifiedRecord, *fault.Failure)
}

// Config holds per-source retry settings and the end-to-end deadline.
type Config struct {
	Deadline   time.Duration
	StatOffice retry.Config
	CourtReg   retry.Config
	EntrepReg  retry.Config
}

// Orchestrator drives the state machine for one lookup at a time; many
// lookups run concurrently sharing only the session manager and the gate.
type Orchestrator struct {
	cfg      Config
	stat     StatClient
	court    CourtClient
	firms    FirmClient
	sessions Sessions
	gate     Gate
	mapper   RecordMapper
	log      *slog.Logger

	statStrategy  retry.Strategy
	courtStrategy retry.Strategy
	firmStrategy  retry.Strategy
}

// New wires an orchestrator.
func New(
	cfg Config,
	stat StatClient,
	court CourtClient,
	firms FirmClient,
	sessions Sessions,
	gate Gate,
	mapper RecordMapper,
) *Orchestrator {
	if cfg.Deadline == 0 {
		cfg.Deadline = 15 * time.Second
	}
	return &Orchestrator{
		cfg:           cfg,
		stat:          stat,
		court:         court,
		firms:         firms,
		sessions:      sessions,
		gate:          gate,
		mapper:        mapper,
		log:           slog.Default().With("component", "orchestrator"),
		statStrategy:  retry.StatOffice{Sessions: sessions},
		courtStrategy: retry.CourtRegistry{},
		firmStrategy:  retry.EntrepreneurRegistry{},
	}
}

// GetCompanyData runs the full decision graph for one tax id and returns
// the unified record or exactly one taxonomy failure.
func (o *Orchestrator) GetCompanyData(
	ctx context.Context,
	taxID domain.TaxID,
	correlationID string,
) (*domain.UnifiedRecord, *fault.Failure) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	f := &flow{taxID: taxID, correlationID: correlationID}
	st, eff := StateClassifying, EffectClassify

	for !st.Terminal() {
		ev := o.execute(ctx, f, eff)
		next, nextEff := transition(st, f, ev)
		o.log.Debug("State transition",
			"from", st.String(), "to", next.String(),
			"correlation_id", correlationID)
		st, eff = next, nextEff
	}

	rec, fail := o.resolve(st, f)
	outcome := "OK"
	if fail != nil {
		outcome = string(fail.Code)
	}
	metrics.LookupsTotal.WithLabelValues(outcome).Inc()
	metrics.LookupDuration.Observe(time.Since(start).Seconds())
	return rec, fail
}

// execute runs one effect and produces the next event. The overall deadline
// is checked on both sides of the effect so an expired request abandons its
// in-flight call instead of awaiting it.
func (o *Orchestrator) execute(ctx context.Context, f *flow, eff Effect) Event {
	if ctx.Err() != nil {
		return Event{Kind: EvDeadlineExceeded}
	}

	ev := o.runEffect(ctx, f, eff)

	if ctx.Err() != nil {
		return Event{Kind: EvDeadlineExceeded}
	}
	return ev
}

func (o *Orchestrator) runEffect(ctx context.Context, f *flow, eff Effect) Event {
	switch eff {
	case EffectAdvance:
		return Event{Kind: EvAdvance}

	case EffectClassify:
		cls, fail := retry.Do(ctx, o.cfg.StatOffice, o.statStrategy,
			fault.SourceStatOffice, f.correlationID,
			func(ctx context.Context) (*domain.Classification, error) {
				return o.statClassify(ctx, f)
			})
		if fail != nil {
			return Event{Kind: EvFetchFailed, Failure: fail}
		}
		f.class = cls
		return Event{Kind: EvClassified}

	case EffectFetchEntrepreneur:
		firm, fail := retry.Do(ctx, o.cfg.EntrepReg, o.firmStrategy,
			fault.SourceEntrepReg, f.correlationID,
			func(ctx context.Context) (*ceidg.Firm, error) {
				return o.firms.FindByTaxID(ctx, f.taxID, f.correlationID)
			})
		if fail != nil {
			return Event{Kind: EvFetchFailed, Failure: fail}
		}
		f.firm = firm
		return Event{Kind: EvPayloadFetched}

	case EffectFetchGenericDetail:
		return o.fetchReport(ctx, f, statoffice.ReportGeneric)

	case EffectFetchLegalDetail:
		return o.fetchReport(ctx, f, statoffice.ReportLegal)

	case EffectFetchRegistryPrimary:
		return o.fetchExtract(ctx, f, courtreg.NamespacePrimary)

	case EffectFetchRegistrySecondary:
		return o.fetchExtract(ctx, f, courtreg.NamespaceSecondary)

	case EffectMap:
		rec, fail := o.mapper.ToUnified(o.mappingInput(f))
		if fail != nil {
			return Event{Kind: EvMapFailed, Failure: fail}
		}
		f.record = rec
		return Event{Kind: EvMapped}

	case EffectMapInactive:
		rec, fail := o.mapper.ToInactive(o.mappingInput(f))
		if fail != nil {
			return Event{Kind: EvMapFailed, Failure: fail}
		}
		f.record = rec
		return Event{Kind: EvMapped}
	}

	return Event{Kind: EvFetchFailed, Failure: fault.New(
		fault.CodeInternal, fault.SourceInternal, f.correlationID,
		"no executor for effect %d", eff)}
}

// statClassify runs one classification attempt through the gate with a
// fresh-enough session.
func (o *Orchestrator) statClassify(ctx context.Context, f *flow) (*domain.Classification, error) {
	var out *domain.Classification
	err := o.gate.Schedule(ctx, func(ctx context.Context) error {
		sess, err := o.sessions.Get(ctx, f.correlationID)
		if err != nil {
			return err
		}
		cls, err := o.stat.Classify(ctx, sess.Handle, f.taxID, f.correlationID)
		if err != nil {
			return err
		}
		out = cls
		return nil
	})
	return out, err
}

func (o *Orchestrator) fetchReport(ctx context.Context, f *flow, name statoffice.ReportName) Event {
	report, fail := retry.Do(ctx, o.cfg.StatOffice, o.statStrategy,
		fault.SourceStatOffice, f.correlationID,
		func(ctx context.Context) (*statoffice.Report, error) {
			var out *statoffice.Report
			err := o.gate.Schedule(ctx, func(ctx context.Context) error {
				sess, err := o.sessions.Get(ctx, f.correlationID)
				if err != nil {
					return err
				}
				rep, err := o.stat.FullReport(ctx, sess.Handle, f.class.RegistryID, name, f.correlationID)
				if err != nil {
					return err
				}
				out = rep
				return nil
			})
			return out, err
		})
	if fail != nil {
		return Event{Kind: EvFetchFailed, Failure: fail}
	}
	f.statReport = report
	return Event{Kind: EvPayloadFetched}
}

func (o *Orchestrator) fetchExtract(ctx context.Context, f *flow, ns courtreg.Namespace) Event {
	rec, fail := retry.Do(ctx, o.cfg.CourtReg, o.courtStrategy,
		fault.SourceCourtReg, f.correlationID,
		func(ctx context.Context) (*courtreg.Record, error) {
			return o.court.CurrentExtract(ctx, ns, f.statReport.CourtNumber, f.correlationID)
		})
	if fail != nil {
		return Event{Kind: EvFetchFailed, Failure: fail}
	}
	f.courtRecord = rec
	return Event{Kind: EvPayloadFetched}
}

func (o *Orchestrator) mappingInput(f *flow) mapping.Input {
	return mapping.Input{
		TaxID:          f.taxID,
		CorrelationID:  f.correlationID,
		Classification: f.class,
		StatReport:     f.statReport,
		CourtRecord:    f.courtRecord,
		Firm:           f.firm,
	}
}

// resolve converts a terminal state into the single outcome of the request.
func (o *Orchestrator) resolve(st State, f *flow) (*domain.UnifiedRecord, *fault.Failure) {
	switch st {
	case StateSuccess:
		return f.record, nil

	case StateNotFound:
		if f.lastFailure != nil && f.lastFailure.Code == fault.CodeNotFound {
			return nil, f.lastFailure
		}
		return nil, fault.New(fault.CodeNotFound, fault.SourceInternal, f.correlationID,
			"no registry entry for tax id %s", f.taxID.Masked())

	case StateDeregistered:
		return nil, fault.New(fault.CodeDeregistered, fault.SourceStatOffice, f.correlationID,
			"entity under tax id %s is deregistered", f.taxID.Masked())

	case StateMappingFailed:
		if f.lastFailure != nil {
			return nil, f.lastFailure
		}
		return nil, fault.New(fault.CodeMappingFailed, fault.SourceInternal, f.correlationID,
			"mapping produced no record")

	case StateTimeout:
		return nil, fault.New(fault.CodeTimeout, fault.SourceInternal, f.correlationID,
			"orchestration deadline of %s exceeded", o.cfg.Deadline)

	default: // StateSystemFault
		if f.lastFailure != nil {
			return nil, f.lastFailure
		}
		return nil, fault.New(fault.CodeInternal, fault.SourceInternal, f.correlationID,
			"orchestration failed without a recorded cause")
	}
}
