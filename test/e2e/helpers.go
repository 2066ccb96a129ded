//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/imtdakar/imtbot/internal/api/handlers"
	"github.com/imtdakar/imtbot/internal/api/middleware"
	"github.com/imtdakar/imtbot/internal/domain"
	"github.com/imtdakar/imtbot/internal/repository"
	"github.com/imtdakar/imtbot/internal/server"
	"github.com/imtdakar/imtbot/internal/service"
	"github.com/imtdakar/imtbot/internal/storage"
	"github.com/imtdakar/imtbot/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	repoRoot  = "../.."
	corpusDir = repoRoot + "/internal/service/testdata/corpus"
	apiKey    = "e2e-key"
)

// E2ETestEnv holds the containers and the running server of one test.
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	RustFSC   *testutil.RustFSContainer
	Pool      *pgxpool.Pool
	S3Client  *storage.S3Client
	Store     *repository.PgIndexRepository
	Logs      *repository.SearchLogRepository
	Holder    *service.SearchHolder
	Server    *httptest.Server
	BinaryDir string
}

// SetupE2EEnv starts Postgres and RustFS, stores a lexical index built from
// the test corpus and serves it.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, repoRoot+"/migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "imtbot-e2e",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	env := &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		RustFSC:   s3C,
		Pool:      pool,
		S3Client:  s3Client,
		Store:     repository.NewPgIndexRepository(pool),
		Logs:      repository.NewSearchLogRepository(pool),
	}

	idx := env.BuildIndex()
	if err := env.Store.Save(ctx, idx); err != nil {
		t.Fatalf("failed to save index: %v", err)
	}
	loaded, err := env.Store.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load index: %v", err)
	}
	svc, err := service.NewSearchService(loaded, nil, service.DefaultSearchConfig())
	if err != nil {
		t.Fatalf("failed to create search service: %v", err)
	}
	env.Holder = service.NewSearchHolder(svc)

	env.Server = httptest.NewServer(server.NewRouter(server.RouterConfig{
		AuthValidator: middleware.NewStaticKeys([]string{"e2e:" + apiKey}),
		SearchHandler: handlers.NewSearchHandler(env.Holder, env.Logs),
	}))
	return env
}

// BuildIndex builds a lexical-only index from the test corpus.
func (e *E2ETestEnv) BuildIndex() *domain.Index {
	idx, err := service.NewIndexService(service.DefaultChunkConfig(), nil).Build(e.Ctx, corpusDir)
	if err != nil {
		e.T.Fatalf("failed to build index: %v", err)
	}
	return idx
}

func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

// BuildBinaries compiles imtbot and imtbotd into a temp dir.
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "imtbot-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"imtbot", "imtbotd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = repoRoot
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunImtbot runs the imtbot CLI with env added to the process environment.
func (e *E2ETestEnv) RunImtbot(workDir string, env []string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "imtbot"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("IMTBOT_API_URL=%s", e.Server.URL),
		fmt.Sprintf("IMTBOT_API_KEY=%s", apiKey),
		"IMTBOT_OPENAI_API_KEY=",
		"IMTBOT_EMBEDDING_BASE_URL=",
	)
	cmd.Env = append(cmd.Env, env...)
	out, err := cmd.Output()
	return string(out), err
}
