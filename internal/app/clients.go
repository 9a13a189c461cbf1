package app

import (
	"context"
	"fmt"

	"github.com/yungbote/lifeos-backend/internal/clients/openai"
	"github.com/yungbote/lifeos-backend/internal/clients/redis"
	"github.com/yungbote/lifeos-backend/internal/clients/s3"
	"github.com/yungbote/lifeos-backend/internal/clients/twelvelabs"
	"github.com/yungbote/lifeos-backend/internal/platform/logger"
	"github.com/yungbote/lifeos-backend/internal/platform/qdrant"
)

type Clients struct {
	Queue      redis.VideoQueue
	TwelveLabs twelvelabs.Client
	OpenAI     openai.Client
	Blob       s3.BlobStore
	Vectors    qdrant.VectorStore
}

// wireClients builds every external client. The blob store is the only
// optional one; segments are committed without an s3_link when it is absent.
func wireClients(ctx context.Context, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	queue, err := redis.NewVideoQueue(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init video queue: %w", err)
	}

	tl, err := twelvelabs.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init twelve labs client: %w", err)
	}

	llm, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	blob, err := s3.NewBlobStore(ctx, log)
	if err != nil {
		log.Warn("Blob store unavailable, segments will commit without s3_link", "error", err)
		blob = nil
	}

	qcfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		return Clients{}, fmt.Errorf("resolve qdrant config: %w", err)
	}
	vectors, err := qdrant.NewVectorStore(log, qcfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init vector store: %w", err)
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		return Clients{}, fmt.Errorf("ensure vector collection: %w", err)
	}

	return Clients{
		Queue:      queue,
		TwelveLabs: tl,
		OpenAI:     llm,
		Blob:       blob,
		Vectors:    vectors,
	}, nil
}
