package schema

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeIndex implements VectorIndex over a Pinecone serverless index.
type PineconeIndex struct {
	client    *pinecone.Client
	indexHost string
	namespace string
}

// NewPineconeIndex connects to Pinecone and resolves the index host if not
// configured explicitly.
func NewPineconeIndex(ctx context.Context, apiKey, indexName, indexHost, namespace string) (*PineconeIndex, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("initializing pinecone client: %w", err)
	}

	if indexHost == "" {
		idx, err := client.DescribeIndex(ctx, indexName)
		if err != nil {
			return nil, fmt.Errorf("describing index %q: %w", indexName, err)
		}
		indexHost = idx.Host
		log.Info().Str("index", indexName).Str("host", indexHost).Msg("resolved vector index host")
	}

	return &PineconeIndex{
		client:    client,
		indexHost: indexHost,
		namespace: namespace,
	}, nil
}

func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	conn, err := p.client.Index(pinecone.NewIndexConnParams{
		Host:      p.indexHost,
		Namespace: p.namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("opening index connection: %w", err)
	}
	defer conn.Close()

	results, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	matches := make([]Match, 0, len(results.Matches))
	for _, m := range results.Matches {
		matches = append(matches, Match{
			ID:       m.Vector.Id,
			Score:    m.Score,
			Metadata: metadataToMap(m.Vector.Metadata),
		})
	}
	return matches, nil
}

func (p *PineconeIndex) Upsert(ctx context.Context, vectors []Vector) error {
	conn, err := p.client.Index(pinecone.NewIndexConnParams{
		Host:      p.indexHost,
		Namespace: p.namespace,
	})
	if err != nil {
		return fmt.Errorf("opening index connection: %w", err)
	}
	defer conn.Close()

	upserts := make([]*pinecone.Vector, 0, len(vectors))
	for _, v := range vectors {
		meta, err := mapToMetadata(v.Metadata)
		if err != nil {
			return fmt.Errorf("building metadata for %s: %w", v.ID, err)
		}
		values := v.Values
		upserts = append(upserts, &pinecone.Vector{
			Id:       v.ID,
			Values:   &values,
			Metadata: meta,
		})
	}

	if _, err := conn.UpsertVectors(ctx, upserts); err != nil {
		return fmt.Errorf("upserting %d vectors: %w", len(upserts), err)
	}
	return nil
}

// Healthy reports whether the Pinecone control plane answers.
func (p *PineconeIndex) Healthy(ctx context.Context) bool {
	_, err := p.client.ListIndexes(ctx)
	return err == nil
}

func metadataToMap(md *pinecone.Metadata) map[string]string {
	out := make(map[string]string)
	if md == nil {
		return out
	}
	for k, v := range md.Fields {
		out[k] = v.GetStringValue()
	}
	return out
}

func mapToMetadata(m map[string]string) (*pinecone.Metadata, error) {
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return structpb.NewStruct(fields)
}
