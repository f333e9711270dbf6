package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github/itish2003/repair-agent/models"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
)

// Neighbor is one candidate returned by a nearest-neighbor query. Distance
// is the raw index distance: lower means a closer match.
type Neighbor struct {
	Document string
	Metadata map[string]interface{}
	Distance float64
}

// IndexEntry is a document to be inserted into the vector index.
type IndexEntry struct {
	Text     string
	Metadata map[string]interface{}
}

// VectorIndex is the narrow port the matcher and indexer need from the
// vector database. ChromaIndex is the production implementation.
type VectorIndex interface {
	QueryNearest(ctx context.Context, vector []float32, n int) ([]Neighbor, error)
	AddDocuments(ctx context.Context, entries []IndexEntry, vectors [][]float32) error
	DeleteByFilename(ctx context.Context, filename string) error
	ListDocuments(ctx context.Context) ([]models.IndexedDocument, error)
	Count(ctx context.Context) (int, error)
}

// ChromaIndex adapts a Chroma v2 collection to the VectorIndex port.
type ChromaIndex struct {
	collection chromago.Collection
	name       string
}

// NewChromaIndex wraps an existing Chroma collection.
func NewChromaIndex(collection chromago.Collection, name string) *ChromaIndex {
	return &ChromaIndex{collection: collection, name: name}
}

// Name returns the collection name backing this index.
func (x *ChromaIndex) Name() string { return x.name }

// QueryNearest implements VectorIndex.
func (x *ChromaIndex) QueryNearest(ctx context.Context, vector []float32, n int) ([]Neighbor, error) {
	embedding := embeddings.NewEmbeddingFromFloat32(vector)

	results, err := x.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embedding),
		chromago.WithNResults(n),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(documentGroups) == 0 {
		return nil, nil
	}

	var neighbors []Neighbor
	for i, doc := range documentGroups[0] {
		neighbor := Neighbor{Document: doc.ContentString()}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) {
			neighbor.Metadata = metadataToMap(metadataGroups[0][i])
		}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			neighbor.Distance = float64(distanceGroups[0][i])
		}
		neighbors = append(neighbors, neighbor)
	}
	return neighbors, nil
}

// AddDocuments implements VectorIndex. All entries are committed in a single
// call; IDs are freshly generated.
func (x *ChromaIndex) AddDocuments(ctx context.Context, entries []IndexEntry, vectors [][]float32) error {
	if len(entries) == 0 {
		return nil
	}
	if len(entries) != len(vectors) {
		return fmt.Errorf("entries and vectors length mismatch: %d vs %d", len(entries), len(vectors))
	}

	ids := make([]chromago.DocumentID, len(entries))
	texts := make([]string, len(entries))
	embs := make([]embeddings.Embedding, len(entries))
	metas := make([]chromago.DocumentMetadata, len(entries))
	for i, entry := range entries {
		ids[i] = chromago.DocumentID(uuid.New().String())
		texts[i] = entry.Text
		embs[i] = embeddings.NewEmbeddingFromFloat32(vectors[i])
		metas[i] = mapToMetadata(entry.Metadata)
	}

	err := x.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add records to chromadb: %w", err)
	}
	return nil
}

// DeleteByFilename implements VectorIndex.
func (x *ChromaIndex) DeleteByFilename(ctx context.Context, filename string) error {
	where := chromago.EqString("filename", filename)
	return x.collection.Delete(ctx, chromago.WithWhereDelete(where))
}

// ListDocuments implements VectorIndex.
func (x *ChromaIndex) ListDocuments(ctx context.Context) ([]models.IndexedDocument, error) {
	results, err := x.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}

	ids := results.GetIDs()
	documents := results.GetDocuments()
	metadatas := results.GetMetadatas()

	docs := make([]models.IndexedDocument, 0, len(documents))
	for i := range documents {
		doc := models.IndexedDocument{
			ID:   string(ids[i]),
			Text: documents[i].ContentString(),
		}
		if len(metadatas) > i && metadatas[i] != nil {
			doc.Metadata = metadataToMap(metadatas[i])
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count implements VectorIndex.
func (x *ChromaIndex) Count(ctx context.Context) (int, error) {
	count, err := x.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

// metadataToMap converts Chroma's DocumentMetadata into a plain map. The
// struct exposes no direct accessor for all values, so it goes through JSON.
func metadataToMap(metadata chromago.DocumentMetadata) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(metadata)
	if err != nil {
		log.Printf("WARN: could not marshal document metadata: %v", err)
		return map[string]interface{}{}
	}
	var metadataMap map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &metadataMap); err != nil {
		log.Printf("WARN: could not unmarshal document metadata: %v", err)
		return map[string]interface{}{}
	}
	return metadataMap
}

// mapToMetadata builds Chroma metadata from a plain map. Only string and int
// values are stored; the index metadata carries filename/title/source keys.
func mapToMetadata(m map[string]interface{}) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(k, val))
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(val)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(k, val))
		default:
			attrs = append(attrs, chromago.NewStringAttribute(k, fmt.Sprintf("%v", val)))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}
