package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/printer"
	"github.com/graphql-go/graphql/language/source"
	"github.com/graphql-go/graphql/language/visitor"

	"github.com/shelfscan/shelfd/internal/model"
)

// Inventaire is the second public free-text/fallback catalog, queried
// through a federated GraphQL endpoint. Requests are coalesced into batches
// on a fixed tick so a burst of concurrent lookups costs one round trip
// instead of N.
type Inventaire struct {
	endpoint string
	client   *http.Client
	batch    *gqlBatcher
}

// NewInventaire builds an Inventaire adapter, starting its batch-flush loop.
// Call Close to stop it.
func NewInventaire(endpoint string) *Inventaire {
	client := newClient("inventaire", "inventaire.io", "", "", 4, 8)
	return &Inventaire{
		endpoint: endpoint,
		client:   client,
		batch:    newGQLBatcher(endpoint, client, 50*time.Millisecond, 25),
	}
}

// Name implements providers.TextSearcher and friends.
func (i *Inventaire) Name() string { return "inventaire" }

// Close stops the background flush loop.
func (i *Inventaire) Close() { i.batch.stop() }

type inventaireWork struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	ISBNs   []string `json:"isbns"`
	Genres  []string `json:"genres"`
	Cover   string   `json:"image"`
}

func (w inventaireWork) record() Record {
	work := model.Work{
		Title:   w.Title,
		Genres:  w.Genres,
		Quality: w.quality(),
		CoverURL: w.Cover,
		Provenance: model.Provenance{
			Primary:      "inventaire",
			Contributors: model.NewStringSet("inventaire"),
		},
		Editions: []model.Edition{{
			ISBNs:   model.NewStringSet(w.ISBNs...),
			Format:  model.FormatPaperback,
			Quality: w.quality(),
			Title:   w.Title,
			CoverURL: w.Cover,
		}},
	}
	for _, a := range w.Authors {
		work.Authors = append(work.Authors, model.Author{Name: a, Gender: model.GenderUnknown})
	}
	return Record{Provider: "inventaire", Work: work}
}

func (w inventaireWork) quality() float64 {
	score := 0.0
	if w.Title != "" {
		score += 25
	}
	if len(w.Authors) > 0 {
		score += 25
	}
	if len(w.ISBNs) > 0 {
		score += 25
	}
	if w.Cover != "" {
		score += 15
	}
	if len(w.Genres) > 0 {
		score += 10
	}
	return score
}

const searchByTitleQuery = `query($q: String!) { searchByTitle(query: $q) { title authors isbns genres image } }`
const searchByISBNQuery = `query($isbn: String!) { searchByISBN(isbn: $isbn) { title authors isbns genres image } }`

// SearchByFreeText implements providers.TextSearcher.
func (i *Inventaire) SearchByFreeText(ctx context.Context, query string, maxResults int) ([]Record, error) {
	var out []inventaireWork
	if err := i.batch.do(ctx, searchByTitleQuery, map[string]any{"q": query}, "searchByTitle", &out); err != nil {
		return nil, err
	}
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	records := make([]Record, 0, len(out))
	for _, w := range out {
		records = append(records, w.record())
	}
	return records, nil
}

// SearchByIdentifier implements providers.IdentifierSearcher.
func (i *Inventaire) SearchByIdentifier(ctx context.Context, isbn string) (Record, error) {
	var out []inventaireWork
	if err := i.batch.do(ctx, searchByISBNQuery, map[string]any{"isbn": isbn}, "searchByISBN", &out); err != nil {
		return Record{}, err
	}
	if len(out) == 0 {
		return Record{}, ErrNotFound
	}
	return out[0].record(), nil
}

// gqlBatcher accumulates distinct GraphQL queries under one operation name
// each other and fires them together on a fixed tick, trading a small amount
// of added latency for a single round trip per tick instead of one per
// caller.
type gqlBatcher struct {
	endpoint string
	client   *http.Client

	mu      sync.Mutex
	pending []pendingQuery
	stopC   chan struct{}
}

type pendingQuery struct {
	alias  string
	field  string
	query  string
	vars   map[string]any
	respC  chan batchResult
}

type batchResult struct {
	raw json.RawMessage
	err error
}

func newGQLBatcher(endpoint string, client *http.Client, tick time.Duration, maxBatch int) *gqlBatcher {
	b := &gqlBatcher{endpoint: endpoint, client: client, stopC: make(chan struct{})}
	go func() {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				b.flush(context.Background(), maxBatch)
			case <-b.stopC:
				return
			}
		}
	}()
	return b
}

func (b *gqlBatcher) stop() { close(b.stopC) }

// do enqueues a single-field query and blocks until its batch resolves,
// unmarshaling the result field into dst.
func (b *gqlBatcher) do(ctx context.Context, query string, vars map[string]any, field string, dst any) error {
	respC := make(chan batchResult, 1)
	alias := randAlias(6)

	b.mu.Lock()
	b.pending = append(b.pending, pendingQuery{alias: alias, field: field, query: query, vars: vars, respC: respC})
	b.mu.Unlock()

	select {
	case res := <-respC:
		if res.err != nil {
			return res.err
		}
		if res.raw == nil {
			return nil
		}
		return json.Unmarshal(res.raw, dst)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush merges up to maxBatch pending queries into one document (aliasing
// each root field so they can't collide), executes it, and routes each
// aliased result back to its caller.
func (b *gqlBatcher) flush(ctx context.Context, maxBatch int) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	n := len(b.pending)
	if n > maxBatch {
		n = maxBatch
	}
	batch := b.pending[:n]
	b.pending = b.pending[n:]
	b.mu.Unlock()

	mergedOp, mergedVars, err := mergeQueries(batch)
	if err != nil {
		for _, q := range batch {
			q.respC <- batchResult{err: err}
		}
		return
	}

	reqBody, _ := json.Marshal(map[string]any{
		"query":     printer.Print(mergedOp),
		"variables": mergedVars,
	})

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		for _, q := range batch {
			q.respC <- batchResult{err: err}
		}
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		for _, q := range batch {
			q.respC <- batchResult{err: err}
		}
		return
	}
	defer resp.Body.Close()

	var parsed struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		for _, q := range batch {
			q.respC <- batchResult{err: &Failure{Provider: "inventaire", Kind: FailureMalformedResponse, Err: err}}
		}
		return
	}

	for _, q := range batch {
		q.respC <- batchResult{raw: parsed.Data[q.alias]}
	}
}

// mergeQueries parses each pending query, renames its variables to avoid
// collisions, aliases its root field to its batch alias, and concatenates
// all of them under a single operation.
func mergeQueries(batch []pendingQuery) (*ast.OperationDefinition, map[string]any, error) {
	var op *ast.OperationDefinition
	vars := map[string]any{}

	for _, q := range batch {
		src := source.NewSource(&source.Source{Body: []byte(q.query)})
		doc, err := parser.Parse(parser.ParseParams{Source: src})
		if err != nil {
			return nil, nil, fmt.Errorf("parsing query: %w", err)
		}

		for _, def := range doc.Definitions {
			opDef, ok := def.(*ast.OperationDefinition)
			if !ok {
				continue
			}

			renamed := map[string]string{}
			visitor.Visit(opDef, visitor.VisitInParallel(&visitor.VisitorOptions{
				Enter: func(p visitor.VisitFuncParams) (string, interface{}) {
					switch node := p.Node.(type) {
					case *ast.VariableDefinition:
						old := node.Variable.Name.Value
						nn := q.alias + "_" + old
						renamed[old] = nn
						node.Variable.Name.Value = nn
						vars[nn] = q.vars[old]
					case *ast.Variable:
						if nn, ok := renamed[node.Name.Value]; ok {
							node.Name.Value = nn
						}
					case *ast.Field:
						if len(p.Ancestors) == 3 {
							node.Alias = &ast.Name{Value: q.alias, Kind: "Name"}
						}
					}
					return visitor.ActionNoChange, nil
				},
			}), nil)

			if op == nil {
				op = opDef
				continue
			}
			op.SelectionSet.Selections = append(op.SelectionSet.Selections, opDef.SelectionSet.Selections...)
			op.VariableDefinitions = append(op.VariableDefinitions, opDef.VariableDefinitions...)
		}
	}

	return op, vars, nil
}

var aliasRunes = []rune("abcdefghijklmnopqrstuvwxyz")

func randAlias(n int) string {
	b := make([]rune, n)
	// A simple xorshift-style mix keeps this package free of a math/rand
	// import for what's just a collision-avoidance tag, not real randomness.
	seed := uint64(time.Now().UnixNano())
	for i := range b {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		b[i] = aliasRunes[seed%uint64(len(aliasRunes))]
	}
	return string(b)
}
