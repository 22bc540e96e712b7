package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/m-mizutani/evrag/pkg/adapter"
	"github.com/m-mizutani/evrag/pkg/dataset"
	"github.com/m-mizutani/evrag/pkg/embedding"
	"github.com/m-mizutani/evrag/pkg/knowledge"
	"github.com/m-mizutani/evrag/pkg/model"
	"github.com/m-mizutani/evrag/pkg/usecase/retrieve"
	"github.com/m-mizutani/evrag/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	embedderGemini = "gemini"
	embedderHash   = "hash"
)

// config holds configuration values
type config struct {
	configFile string

	// Dataset and retrieval
	data string
	topK int64

	// Embedding
	embedder            string
	geminiProject       string
	geminiLocation      string
	embeddingModel      string
	embeddingDimensions int64
	embeddingTaskType   string
	embeddingBatchSize  int64
	embeddingRPS        float64
	hashDimensions      int64

	// Logging
	logLevel  string
	logFormat string
}

// fileConfig is the layout of the --config YAML file
type fileConfig struct {
	Data     string `yaml:"data"`
	TopK     int64  `yaml:"top_k"`
	Embedder string `yaml:"embedder"`
	Gemini   struct {
		Project    string  `yaml:"project"`
		Location   string  `yaml:"location"`
		Model      string  `yaml:"model"`
		Dimensions int64   `yaml:"dimensions"`
		TaskType   string  `yaml:"task_type"`
		BatchSize  int64   `yaml:"batch_size"`
		RPS        float64 `yaml:"rps"`
	} `yaml:"gemini"`
	HashDimensions int64  `yaml:"hash_dimensions"`
	LogLevel       string `yaml:"log_level"`
}

// globalFlags returns flags shared by every command with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file providing defaults",
			Sources:     cli.EnvVars("EVRAG_CONFIG"),
			Destination: &cfg.configFile,
		},
		&cli.StringFlag{
			Name:        "data",
			Aliases:     []string{"d"},
			Usage:       "Dataset location: CSV path, gs://bucket/object.csv or bq://project.dataset.table",
			Value:       "cleaned_ev_dataset.csv",
			Sources:     cli.EnvVars("EVRAG_DATA"),
			Destination: &cfg.data,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("EVRAG_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("EVRAG_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// retrievalFlags returns flags for embedding and search with destination config
func retrievalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "top-k",
			Aliases:     []string{"k"},
			Usage:       "Number of entries returned per question",
			Value:       retrieve.DefaultTopK,
			Sources:     cli.EnvVars("EVRAG_TOP_K"),
			Destination: &cfg.topK,
		},
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "Embedding provider (gemini, hash)",
			Value:       embedderGemini,
			Sources:     cli.EnvVars("EVRAG_EMBEDDER"),
			Destination: &cfg.embedder,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("EVRAG_GEMINI_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("EVRAG_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini embedding model",
			Value:       "gemini-embedding-001",
			Sources:     cli.EnvVars("EVRAG_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensions",
			Usage:       "Output dimensionality of Gemini embeddings (0 for model default)",
			Sources:     cli.EnvVars("EVRAG_EMBEDDING_DIMENSIONS"),
			Destination: &cfg.embeddingDimensions,
		},
		&cli.StringFlag{
			Name:        "embedding-task-type",
			Usage:       "Gemini embedding task type applied to entries and questions alike (empty for model default)",
			Sources:     cli.EnvVars("EVRAG_EMBEDDING_TASK_TYPE"),
			Destination: &cfg.embeddingTaskType,
		},
		&cli.IntFlag{
			Name:        "embedding-batch-size",
			Usage:       "Texts per Gemini embedding request (0 for the model's default)",
			Sources:     cli.EnvVars("EVRAG_EMBEDDING_BATCH_SIZE"),
			Destination: &cfg.embeddingBatchSize,
		},
		&cli.FloatFlag{
			Name:        "embedding-rps",
			Usage:       "Maximum Gemini embedding requests per second (0 for unlimited)",
			Value:       embedding.DefaultRequestsPerSecond,
			Sources:     cli.EnvVars("EVRAG_EMBEDDING_RPS"),
			Destination: &cfg.embeddingRPS,
		},
		&cli.IntFlag{
			Name:        "hash-dimensions",
			Usage:       "Vector width of the hash embedder",
			Value:       embedding.DefaultHashDimensions,
			Sources:     cli.EnvVars("EVRAG_HASH_DIMENSIONS"),
			Destination: &cfg.hashDimensions,
		},
	}
}

// loadFile applies values of the YAML config file to options not set on the command line
func (cfg *config) loadFile(c *cli.Command) error {
	if cfg.configFile == "" {
		return nil
	}

	raw, err := os.ReadFile(cfg.configFile)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configFile))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configFile))
	}

	cfg.applyFile(&fc, c.IsSet)
	return nil
}

func (cfg *config) applyFile(fc *fileConfig, isSet func(name string) bool) {
	setString := func(name string, dst *string, v string) {
		if v != "" && !isSet(name) {
			*dst = v
		}
	}
	setInt := func(name string, dst *int64, v int64) {
		if v != 0 && !isSet(name) {
			*dst = v
		}
	}

	setString("data", &cfg.data, fc.Data)
	setString("log-level", &cfg.logLevel, fc.LogLevel)
	setInt("top-k", &cfg.topK, fc.TopK)
	setString("embedder", &cfg.embedder, fc.Embedder)
	setString("gemini-project", &cfg.geminiProject, fc.Gemini.Project)
	setString("gemini-location", &cfg.geminiLocation, fc.Gemini.Location)
	setString("embedding-model", &cfg.embeddingModel, fc.Gemini.Model)
	setInt("embedding-dimensions", &cfg.embeddingDimensions, fc.Gemini.Dimensions)
	setString("embedding-task-type", &cfg.embeddingTaskType, fc.Gemini.TaskType)
	setInt("embedding-batch-size", &cfg.embeddingBatchSize, fc.Gemini.BatchSize)
	setInt("hash-dimensions", &cfg.hashDimensions, fc.HashDimensions)
	if fc.Gemini.RPS != 0 && !isSet("embedding-rps") {
		cfg.embeddingRPS = fc.Gemini.RPS
	}
}

// setup loads the config file and attaches a logger to ctx
func (cfg *config) setup(ctx context.Context, c *cli.Command) (context.Context, error) {
	if err := cfg.loadFile(c); err != nil {
		return ctx, err
	}

	logger, err := logging.NewWithFormat(cfg.logLevel, logging.Format(cfg.logFormat), c.Root().ErrWriter)
	if err != nil {
		return ctx, err
	}
	logging.SetDefault(logger)

	return logging.With(ctx, logger), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	opts := []adapter.GeminiOption{
		adapter.WithEmbeddingModel(cfg.embeddingModel),
		adapter.WithTaskType(cfg.embeddingTaskType),
	}
	if cfg.embeddingDimensions > 0 {
		opts = append(opts, adapter.WithDimensions(int32(cfg.embeddingDimensions)))
	}

	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// singleInputModels accept only one text per embedding request on Vertex AI
var singleInputModels = map[string]bool{
	"gemini-embedding-001": true,
}

// batchSize resolves --embedding-batch-size, falling back to what the model accepts
func (cfg *config) batchSize() (int, error) {
	switch {
	case cfg.embeddingBatchSize < 0:
		return 0, goerr.New("embedding-batch-size must not be negative", goerr.V("batch_size", cfg.embeddingBatchSize))
	case cfg.embeddingBatchSize > 0:
		return int(cfg.embeddingBatchSize), nil
	case singleInputModels[cfg.embeddingModel]:
		return 1, nil
	default:
		return embedding.DefaultBatchSize, nil
	}
}

// embeddingOptions returns the pacing and batching options of the Gemini provider
func (cfg *config) embeddingOptions() ([]embedding.GeminiOption, error) {
	size, err := cfg.batchSize()
	if err != nil {
		return nil, err
	}
	return []embedding.GeminiOption{
		embedding.WithBatchSize(size),
		embedding.WithRequestsPerSecond(cfg.embeddingRPS),
	}, nil
}

// newProvider creates the embedding provider selected by --embedder
func (cfg *config) newProvider(ctx context.Context) (embedding.Provider, error) {
	switch cfg.embedder {
	case embedderGemini:
		opts, err := cfg.embeddingOptions()
		if err != nil {
			return nil, err
		}
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		return embedding.NewGemini(gemini, opts...), nil

	case embedderHash:
		return embedding.NewHash(int(cfg.hashDimensions))

	default:
		return nil, goerr.New("unknown embedder", goerr.V("embedder", cfg.embedder))
	}
}

// newLoader creates a dataset loader with the clients the source needs
func (cfg *config) newLoader(ctx context.Context, src *dataset.Source) (*dataset.Loader, error) {
	var opts []dataset.Option

	switch src.Kind {
	case dataset.SourceStorage:
		storage, err := adapter.NewStorage(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dataset.WithStorage(storage))

	case dataset.SourceBigQuery:
		bq, err := adapter.NewBigQuery(ctx, src.Project)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dataset.WithBigQuery(bq))
	}

	return dataset.New(opts...), nil
}

// newKnowledgeBase loads the dataset and builds the knowledge base
func (cfg *config) newKnowledgeBase(ctx context.Context) (model.KnowledgeBase, error) {
	src, err := dataset.ParseSource(cfg.data)
	if err != nil {
		return nil, err
	}

	loader, err := cfg.newLoader(ctx, src)
	if err != nil {
		return nil, err
	}

	records, err := loader.Load(ctx, src)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load dataset")
	}

	kb, err := knowledge.Build(records)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build knowledge base", goerr.V("source", src.String()))
	}
	return kb, nil
}

// newRetriever builds the knowledge base, embeds it and indexes it
func (cfg *config) newRetriever(ctx context.Context) (*retrieve.Retriever, error) {
	if cfg.topK < 1 {
		return nil, goerr.New("top-k must be positive", goerr.V("top_k", cfg.topK))
	}

	kb, err := cfg.newKnowledgeBase(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := cfg.newProvider(ctx)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("building retriever",
		slog.String("embedder", cfg.embedder),
		slog.Int("entries", len(kb)))

	return retrieve.New(ctx, provider, kb)
}
