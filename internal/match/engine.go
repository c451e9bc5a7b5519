// Package match ranks care partners by combined semantic and geographic fit.
package match

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smart-directory/referral-service/internal/llm"
	"github.com/smart-directory/referral-service/internal/model"
	"github.com/smart-directory/referral-service/internal/store"
	"github.com/smart-directory/referral-service/pkg/logger"
	"github.com/smart-directory/referral-service/pkg/metrics"
)

// Config holds the ranking parameters.
type Config struct {
	// SymptomWeight and ServiceWeight combine the two similarities into one
	// score. They must sum to 1, symptom weighted higher.
	SymptomWeight float64
	ServiceWeight float64

	// Threshold is the minimum overall score; partners at or below it are
	// discarded before the distance filter.
	Threshold float64

	// MaxDistanceKM is a hard radius: partners farther than this from the
	// patient never match, whatever their score.
	MaxDistanceKM float64

	// TopK bounds the result length.
	TopK int
}

// Match is one ranked partner, annotated with its closest service location.
type Match struct {
	Partner           model.Partner
	Score             float64
	SymptomSimilarity float64
	ServiceSimilarity float64
	DistanceKM        float64
	Address           string
}

// Engine is the partner matching engine. Deterministic given fixed inputs and
// a fixed partner set.
type Engine struct {
	partners store.PartnerStore
	embedder llm.Embedder
	cfg      Config
	logger   *logger.Logger
}

// NewEngine creates a matching engine.
func NewEngine(partners store.PartnerStore, embedder llm.Embedder, cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		partners: partners,
		embedder: embedder,
		cfg:      cfg,
		logger:   log,
	}
}

// Match returns up to TopK partners for the symptom set and patient location,
// ordered by overall similarity descending. An empty result is not an error;
// the caller decides how to tell the patient.
func (e *Engine) Match(ctx context.Context, symptoms []string, loc model.Location) ([]Match, error) {
	start := time.Now()

	// Symptoms are already normalized to English by the extractor, so one
	// query embedding covers the whole set.
	query := strings.Join(symptoms, ", ")
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		metrics.RecordMatch("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to embed symptom query: %w", err)
	}

	partners, err := e.partners.List(ctx)
	if err != nil {
		metrics.RecordMatch("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}

	var candidates []Match
	for _, p := range partners {
		// A partner without embeddings is skipped, never scored as zero.
		if !p.HasEmbeddings() {
			continue
		}

		m := e.score(queryVec, p)
		if m.Score <= e.cfg.Threshold {
			continue
		}

		distance, address, ok := closestLocation(p, loc)
		if !ok || distance > e.cfg.MaxDistanceKM {
			continue
		}
		m.DistanceKM = distance
		m.Address = address

		candidates = append(candidates, m)
	}

	// Distance is a hard filter only; ordering is by score, with the partner
	// ID breaking ties so repeated runs stay deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Partner.ID < candidates[j].Partner.ID
	})

	if len(candidates) > e.cfg.TopK {
		candidates = candidates[:e.cfg.TopK]
	}

	outcome := "matched"
	if len(candidates) == 0 {
		outcome = "empty"
	}
	metrics.RecordMatch(outcome, time.Since(start).Seconds())

	e.logger.Debug("matching complete",
		zap.Int("partners", len(partners)),
		zap.Int("matches", len(candidates)),
	)

	return candidates, nil
}

// score combines symptom and service similarity into one weighted score. A
// partner with only one embedding is scored on that one alone.
func (e *Engine) score(queryVec []float32, p model.Partner) Match {
	m := Match{Partner: p}

	hasSymptom := len(p.SymptomEmbedding) > 0
	hasService := len(p.ServiceEmbedding) > 0

	if hasSymptom {
		m.SymptomSimilarity = cosineSimilarity(queryVec, p.SymptomEmbedding)
	}
	if hasService {
		m.ServiceSimilarity = cosineSimilarity(queryVec, p.ServiceEmbedding)
	}

	switch {
	case hasSymptom && hasService:
		m.Score = e.cfg.SymptomWeight*m.SymptomSimilarity + e.cfg.ServiceWeight*m.ServiceSimilarity
	case hasSymptom:
		m.Score = m.SymptomSimilarity
	default:
		m.Score = m.ServiceSimilarity
	}
	return m
}

// closestLocation returns the minimum distance from the patient to any of the
// partner's service locations and that location's address. A partner with no
// coordinate pair on any location cannot enter the distance filter.
func closestLocation(p model.Partner, loc model.Location) (float64, string, bool) {
	best := -1.0
	address := ""
	for _, sl := range p.Locations {
		if !sl.HasCoordinates() {
			continue
		}
		d := haversineKM(loc.Lat, loc.Lon, *sl.Lat, *sl.Lon)
		if best < 0 || d < best {
			best = d
			address = sl.Address
		}
	}
	if best < 0 {
		return 0, "", false
	}
	return best, address, true
}
