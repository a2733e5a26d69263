// internal/adapters/vector/weaviate.go
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
	"github.com/ammerola/household-be/internal/core/resilience"
)

// DefaultClass is the Weaviate class holding item documents
const DefaultClass = "HouseholdItem"

// itemProperties are the text properties stored with every item document
var itemProperties = []string{"item_id", "name", "description", "category", "tags", "locations", "status"}

// Config configures the Weaviate connection
type Config struct {
	URL   string
	Class string
}

// WeaviateStore implements VectorStore on a Weaviate class with
// caller-supplied vectors
type WeaviateStore struct {
	client *weaviate.Client
	class  string
	logger *slog.Logger
}

var _ ports.VectorStore = (*WeaviateStore)(nil)

func NewWeaviateStore(cfg Config, logger *slog.Logger) (*WeaviateStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("weaviate url is required")
	}
	if cfg.Class == "" {
		cfg.Class = DefaultClass
	}

	clientCfg := weaviate.Config{Host: cfg.URL, Scheme: "http"}
	switch {
	case strings.HasPrefix(cfg.URL, "https://"):
		clientCfg.Scheme = "https"
		clientCfg.Host = strings.TrimPrefix(cfg.URL, "https://")
	case strings.HasPrefix(cfg.URL, "http://"):
		clientCfg.Host = strings.TrimPrefix(cfg.URL, "http://")
	}

	client, err := weaviate.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &WeaviateStore{
		client: client,
		class:  cfg.Class,
		logger: logger.With(slog.String("component", "weaviate"), slog.String("class", cfg.Class)),
	}, nil
}

// EnsureSchema creates the item class when it does not exist
func (w *WeaviateStore) EnsureSchema(ctx context.Context) error {
	_, err := w.client.Schema().ClassGetter().WithClassName(w.class).Do(ctx)
	if err == nil {
		return nil
	}
	if statusOf(err) != http.StatusNotFound {
		return fmt.Errorf("failed to read weaviate schema: %w", translate(err))
	}

	props := make([]*models.Property, 0, len(itemProperties))
	for _, name := range itemProperties {
		props = append(props, &models.Property{Name: name, DataType: []string{"text"}})
	}
	class := &models.Class{
		Class:       w.class,
		Description: "Household items, one object per item",
		Vectorizer:  "none",
		Properties:  props,
	}
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create weaviate class: %w", translate(err))
	}

	w.logger.InfoContext(ctx, "created weaviate class")
	return nil
}

// Upsert creates the object or replaces an existing one with the same ID
func (w *WeaviateStore) Upsert(ctx context.Context, id uuid.UUID, vector []float32, properties map[string]any) error {
	exists, err := w.client.Data().Checker().
		WithClassName(w.class).
		WithID(id.String()).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check weaviate object: %w", translate(err))
	}

	if !exists {
		_, err = w.client.Data().Creator().
			WithClassName(w.class).
			WithID(id.String()).
			WithProperties(properties).
			WithVector(vector).
			Do(ctx)
		if err == nil {
			return nil
		}
		// lost a race with a concurrent create
		if statusOf(err) != http.StatusUnprocessableEntity {
			return fmt.Errorf("failed to create weaviate object: %w", translate(err))
		}
	}

	err = w.client.Data().Updater().
		WithClassName(w.class).
		WithID(id.String()).
		WithProperties(properties).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to update weaviate object: %w", translate(err))
	}
	return nil
}

// Delete removes the object; a missing object is not an error
func (w *WeaviateStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := w.client.Data().Deleter().
		WithClassName(w.class).
		WithID(id.String()).
		Do(ctx)
	if err != nil && statusOf(err) != http.StatusNotFound {
		return fmt.Errorf("failed to delete weaviate object: %w", translate(err))
	}
	return nil
}

// Query returns the objects nearest to vector
func (w *WeaviateStore) Query(ctx context.Context, vector []float32, limit int) ([]domain.SearchHit, error) {
	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	resp, err := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(
			graphql.Field{Name: "name"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
		).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query weaviate: %w", translate(err))
	}
	return parseHits(resp, w.class)
}

// Ready reports whether Weaviate accepts requests
func (w *WeaviateStore) Ready(ctx context.Context) error {
	ready, err := w.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate readiness check failed: %w", translate(err))
	}
	if !ready {
		return fmt.Errorf("weaviate is not ready: %w", domain.ErrUnavailable)
	}
	return nil
}

type hitRow struct {
	Name       string `json:"name"`
	Additional struct {
		ID        string  `json:"id"`
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

func parseHits(resp *models.GraphQLResponse, class string) ([]domain.SearchHit, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty graphql response: %w", domain.ErrUnavailable)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql query failed: %s", strings.Join(msgs, "; "))
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graphql data: %w", err)
	}
	var parsed struct {
		Get map[string][]hitRow `json:"Get"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode graphql data: %w", err)
	}

	rows := parsed.Get[class]
	hits := make([]domain.SearchHit, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.Additional.ID)
		if err != nil {
			continue
		}
		hits = append(hits, domain.SearchHit{ItemID: id, Name: row.Name, Certainty: row.Additional.Certainty})
	}
	return hits, nil
}

func statusOf(err error) int {
	var clientErr *fault.WeaviateClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}

// translate exposes HTTP status codes to the classifier and marks
// connection failures as unavailability
func translate(err error) error {
	var clientErr *fault.WeaviateClientError
	if !errors.As(err, &clientErr) {
		return err
	}
	if clientErr.StatusCode > 0 {
		return &resilience.StatusError{Status: clientErr.StatusCode, Err: err}
	}
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}
