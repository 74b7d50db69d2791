package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

const packageName = "artifact"

type fileLoader struct{}

// NewFileLoader reads artifacts from the local filesystem.
func NewFileLoader() repository.ArtifactRepository {
	return &fileLoader{}
}

func (l *fileLoader) Load(ctx context.Context, path string) (*model.Artifact, error) {
	funcName := util.FuncName()

	if err := ctx.Err(); err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to read artifact: %w", err))
	}

	var artifact model.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to parse artifact %s: %w", path, err))
	}
	if artifact.Bytecode == "" {
		return nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("artifact %s has no bytecode", path))
	}

	return &artifact, nil
}

type loader struct {
	file   repository.ArtifactRepository
	remote repository.ArtifactRepository
}

// NewLoader sends http(s) URLs to remote and everything else to file.
func NewLoader(file, remote repository.ArtifactRepository) repository.ArtifactRepository {
	return &loader{
		file:   file,
		remote: remote,
	}
}

func (l *loader) Load(ctx context.Context, source string) (*model.Artifact, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.remote.Load(ctx, source)
	}
	return l.file.Load(ctx, strings.TrimPrefix(source, "file://"))
}
