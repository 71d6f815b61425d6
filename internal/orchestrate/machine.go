// Package orchestrate walks a tax id through the decision graph: classify,
// route, fetch from the right sources with per-source retry, map, terminate.
//
// The transition logic is a pure function over an explicit state enum; the
// driver in orchestrator.go executes the effects (upstream calls) it names.
// The machine never retries; retries live in the retry executor beneath it,
// and its only recovery is falling back between sources.
package orchestrate

import (
	"github.com/vietddude/regfetch/internal/core/domain"
	"github.com/vietddude/regfetch/internal/core/fault"
	"github.com/vietddude/regfetch/internal/infra/upstream/ceidg"
	"github.com/vietddude/regfetch/internal/infra/upstream/courtreg"
	"github.com/vietddude/regfetch/internal/infra/upstream/statoffice"
)

// State is one node of the decision graph.
type State int

const (
	StateClassifying State = iota
	StateRouting
	StateInactiveMapping
	StateFetchEntrepreneur
	StateFetchGenericDetail
	StateFetchLegalDetail
	StateFetchRegistryPrimary
	StateFetchRegistrySecondary
	StateMapping

	// Terminal states
	StateSuccess
	StateNotFound
	StateDeregistered
	StateSystemFault
	StateMappingFailed
	StateTimeout
)

var stateNames = map[State]string{
	StateClassifying:            "classifying",
	StateRouting:                "routing",
	StateInactiveMapping:        "inactive-mapping",
	StateFetchEntrepreneur:      "fetch-entrepreneur",
	StateFetchGenericDetail:     "fetch-generic-detail",
	StateFetchLegalDetail:       "fetch-legal-detail",
	StateFetchRegistryPrimary:   "fetch-registry-primary",
	StateFetchRegistrySecondary: "fetch-registry-secondary",
	StateMapping:                "mapping",
	StateSuccess:                "success",
	StateNotFound:               "not-found",
	StateDeregistered:           "deregistered",
	StateSystemFault:            "system-fault",
	StateMappingFailed:          "mapping-failed",
	StateTimeout:                "timeout",
}

func (s State) String() string { return stateNames[s] }

// Terminal reports whether the state ends the orchestration.
func (s State) Terminal() bool { return s >= StateSuccess }

// Effect names the side effect the driver must execute to feed the machine
// its next event. EffectAdvance is the pure no-I/O step.
type Effect int

const (
	EffectNone Effect = iota
	EffectAdvance
	EffectClassify
	EffectFetchEntrepreneur
	EffectFetchGenericDetail
	EffectFetchLegalDetail
	EffectFetchRegistryPrimary
	EffectFetchRegistrySecondary
	EffectMap
	EffectMapInactive
)

// EventKind discriminates the events fed into the transition function.
type EventKind int

const (
	EvAdvance EventKind = iota
	EvClassified
	EvPayloadFetched
	EvFetchFailed
	EvMapped
	EvMapFailed
	EvDeadlineExceeded
)

// Event is the machine input produced by executing an effect.
type Event struct {
	Kind    EventKind
	Failure *fault.Failure
}

// flow accumulates the per-request intermediate results. Identifiers are
// immutable; only payload fields are written, each exactly once.
type flow struct {
	taxID         domain.TaxID
	correlationID string

	class       *domain.Classification
	statReport  *statoffice.Report
	courtRecord *courtreg.Record
	firm        *ceidg.Firm
	record      *domain.UnifiedRecord

	lastFailure *fault.Failure
}

// transition is the pure decision function: given the current state, the
// accumulated flow and an event, it returns the next state and the effect
// the driver must run. It performs no I/O and never blocks.
func transition(st State, f *flow, ev Event) (State, Effect) {
	// The overall deadline pre-empts everything.
	if ev.Kind == EvDeadlineExceeded {
		return StateTimeout, EffectNone
	}
	if ev.Kind == EvFetchFailed || ev.Kind == EvMapFailed {
		f.lastFailure = ev.Failure
	}

	switch st {
	case StateClassifying:
		switch ev.Kind {
		case EvClassified:
			return StateRouting, EffectAdvance
		case EvFetchFailed:
			if ev.Failure.Code == fault.CodeNotFound {
				return StateNotFound, EffectNone
			}
			return StateSystemFault, EffectNone
		}

	case StateRouting:
		// Pure routing on the classification; no upstream call happens here.
		switch {
		case f.class.EndDate != nil:
			return StateInactiveMapping, EffectMapInactive
		case f.class.Category == domain.CategoryDeregistered:
			return StateDeregistered, EffectNone
		case f.class.Category == domain.CategoryIndividualEntrep:
			return StateFetchEntrepreneur, EffectFetchEntrepreneur
		case f.class.Category == domain.CategoryAgriculture,
			f.class.Category == domain.CategoryProfessionalServices:
			return StateFetchGenericDetail, EffectFetchGenericDetail
		case f.class.Category == domain.CategoryLegalEntity:
			return StateFetchLegalDetail, EffectFetchLegalDetail
		default:
			// Defensive: a category outside the closed set never routes.
			f.lastFailure = fault.New(fault.CodeUnknownCategory, fault.SourceInternal,
				f.correlationID, "cannot route category %q", f.class.Category)
			return StateSystemFault, EffectNone
		}

	case StateFetchEntrepreneur:
		switch ev.Kind {
		case EvPayloadFetched:
			return StateMapping, EffectMap
		case EvFetchFailed:
			// Any entrepreneur-registry failure falls back to the generic
			// stat-office detail.
			return StateFetchGenericDetail, EffectFetchGenericDetail
		}

	case StateFetchGenericDetail:
		switch ev.Kind {
		case EvPayloadFetched:
			return StateMapping, EffectMap
		case EvFetchFailed:
			if ev.Failure.Code == fault.CodeNotFound {
				return StateNotFound, EffectNone
			}
			return StateSystemFault, EffectNone
		}

	case StateFetchLegalDetail:
		switch ev.Kind {
		case EvPayloadFetched:
			if f.statReport.CourtNumber != "" {
				return StateFetchRegistryPrimary, EffectFetchRegistryPrimary
			}
			// No registry number: map with stat-office data only.
			return StateMapping, EffectMap
		case EvFetchFailed:
			if ev.Failure.Code == fault.CodeNotFound {
				return StateNotFound, EffectNone
			}
			return StateSystemFault, EffectNone
		}

	case StateFetchRegistryPrimary:
		switch ev.Kind {
		case EvPayloadFetched:
			return StateMapping, EffectMap
		case EvFetchFailed:
			// Only a not-found triggers the one secondary-namespace lookup;
			// any other registry failure degrades to stat-office data.
			if ev.Failure.Code == fault.CodeNotFound {
				return StateFetchRegistrySecondary, EffectFetchRegistrySecondary
			}
			return StateMapping, EffectMap
		}

	case StateFetchRegistrySecondary:
		switch ev.Kind {
		case EvPayloadFetched:
			return StateMapping, EffectMap
		case EvFetchFailed:
			return StateMapping, EffectMap
		}

	case StateMapping, StateInactiveMapping:
		switch ev.Kind {
		case EvMapped:
			return StateSuccess, EffectNone
		case EvMapFailed:
			return StateMappingFailed, EffectNone
		}
	}

	// An event the state has no edge for is a programming error; fail closed.
	f.lastFailure = fault.New(fault.CodeInternal, fault.SourceInternal, f.correlationID,
		"no transition from %s on event %d", st, ev.Kind)
	return StateSystemFault, EffectNone
}
