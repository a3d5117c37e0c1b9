package engine

import (
	"context"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/matsen/smx/internal/corpus"
	"github.com/matsen/smx/internal/mention"
	"github.com/matsen/smx/internal/plan"
	"github.com/matsen/smx/internal/shard"
	"github.com/matsen/smx/internal/vocab"
)

// unitResult carries the per-unit counters back to the pool.
type unitResult struct {
	records       int
	matches       int
	parseFailures int
	shards        []string
}

// processUnit performs the single sequential forward pass over one work
// unit's file: read each record's exact byte span in ascending offset
// order, test it against the full compiled term set, and append match
// records to the unit's shards. A record that fails to parse is counted
// and skipped; an I/O failure fails the whole unit.
func processUnit(ctx context.Context, cfg Config, m *vocab.Matcher, unit plan.WorkUnit, limiter *rate.Limiter) (*unitResult, error) {
	var opts []corpus.ReaderOption
	if limiter != nil {
		opts = append(opts, corpus.WithThrottle(limiter))
	}

	r, err := corpus.OpenReader(filepath.Join(cfg.CorpusDir, unit.FilePath), opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	w := shard.NewWriter(cfg.ShardDir, unit.ID, cfg.ShardMaxRecords)
	res := &unitResult{}

	for _, loc := range unit.Locations {
		if err := ctx.Err(); err != nil {
			w.Abort()
			return nil, err
		}

		data, err := r.ReadSpan(ctx, loc.ByteOffset, loc.ByteLength)
		if err != nil {
			// Covers I/O failures and planner output that violated the
			// ascending-offset invariant; either way the unit fails.
			w.Abort()
			return nil, err
		}

		rec, err := corpus.ParseRecord(data)
		if err != nil {
			res.parseFailures++
			continue
		}
		res.records++

		for _, match := range scanRecord(m, loc.RecordID, rec, cfg.ContextRadius) {
			if err := w.Append(match); err != nil {
				w.Abort()
				return nil, err
			}
			res.matches++
		}
	}

	shards, err := w.Close()
	if err != nil {
		return nil, err
	}
	res.shards = shards
	return res, nil
}

// scanRecord tests every term against the record's sections and builds
// one MatchRecord per term with at least one occurrence anywhere.
func scanRecord(m *vocab.Matcher, recordID string, rec *corpus.Record, radius int) []mention.MatchRecord {
	title := string(rec.Title)
	abstract := string(rec.Abstract)
	body := string(rec.Body)

	var out []mention.MatchRecord
	for i := 0; i < m.Len(); i++ {
		titleCount, titleFirst := m.Find(i, title)
		abstractCount, abstractFirst := m.Find(i, abstract)
		bodyCount, bodyFirst := m.Find(i, body)

		if titleCount == 0 && abstractCount == 0 && bodyCount == 0 {
			continue
		}

		// Location by priority, context from the first body occurrence
		// when there is one, else the richest section that matched.
		location := mention.LocationBody
		switch {
		case titleCount > 0:
			location = mention.LocationTitle
		case abstractCount > 0:
			location = mention.LocationAbstract
		}

		var ctxText string
		switch {
		case bodyCount > 0:
			ctxText = contextWindow(body, bodyFirst, radius)
		case abstractCount > 0:
			ctxText = contextWindow(abstract, abstractFirst, radius)
		default:
			ctxText = contextWindow(title, titleFirst, radius)
		}

		term := m.Term(i)
		out = append(out, mention.MatchRecord{
			TermID:        term.ID,
			TermName:      term.Name,
			RecordID:      recordID,
			Title:         title,
			Abstract:      abstract,
			Context:       ctxText,
			MatchCount:    int32(bodyCount),
			InTitle:       titleCount > 0,
			InAbstract:    abstractCount > 0,
			MatchLocation: location,
		})
	}
	return out
}
