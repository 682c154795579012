package runtime

import (
	"context"
	"embed"
	"fmt"

	"github.com/conduit-lang/pack/internal/code"
	"github.com/conduit-lang/pack/internal/memo"
)

//go:embed js
var files embed.FS

func mustRead(name string) string {
	b, err := files.ReadFile("js/" + name)
	if err != nil {
		panic(fmt.Sprintf("runtime: missing embedded file %s: %v", name, err))
	}
	return string(b)
}

var devRuntimes = map[ChunkLoading]*memo.Lazy[string]{
	ChunkLoadingNone: lazyDevRuntime(ChunkLoadingNone),
	ChunkLoadingNode: lazyDevRuntime(ChunkLoadingNode),
	ChunkLoadingDOM:  lazyDevRuntime(ChunkLoadingDOM),
}

func lazyDevRuntime(loading ChunkLoading) *memo.Lazy[string] {
	return memo.NewLazy(func(context.Context) (string, error) {
		return composeDevRuntime(loading), nil
	})
}

func backendFile(loading ChunkLoading) string {
	switch loading {
	case ChunkLoadingNode:
		return "dev/backend-node.js"
	case ChunkLoadingDOM:
		return "dev/backend-dom.js"
	default:
		return "dev/backend-none.js"
	}
}

func composeDevRuntime(loading ChunkLoading) string {
	var b code.Builder
	b.Writeln("(() => {")
	b.Writeln("if (!Array.isArray(globalThis.TURBOPACK)) {")
	b.Writeln("    return;")
	b.Writeln("}")
	b.Writeln(mustRead("shared/runtime-utils.js"))
	b.Writeln(mustRead("dev/runtime-base.js"))
	b.Writeln(mustRead(backendFile(loading)))
	b.Writedoc(`
		const chunksToRegister = globalThis.TURBOPACK;
		globalThis.TURBOPACK = { push: registerChunk };
		chunksToRegister.forEach(registerChunk);
	`)
	b.Writeln("})();")
	return b.String()
}

// DevRuntimeCode returns the development runtime for env. The runtime turns
// the global chunk queue into a registry that evaluates pushed chunks.
func DevRuntimeCode(env Environment) string {
	lazy, ok := devRuntimes[env.ChunkLoading]
	if !ok {
		lazy = devRuntimes[ChunkLoadingNone]
	}
	s, _ := lazy.Get(context.Background())
	return s
}

// BuildRuntimeCode returns the runtime inlined into build evaluation chunks.
// It defines a `runtime` binding with loadChunk and
// getOrInstantiateRuntimeModule.
func BuildRuntimeCode(env Environment, t Type) string {
	if t == TypeDummy {
		return "const runtime = globalThis.__PACK_DUMMY_RUNTIME__;\n"
	}
	var b code.Builder
	b.Writef("const CHUNK_LOADING = %q;\n", env.ChunkLoading.String())
	b.Writeln(mustRead("shared/runtime-utils.js"))
	b.Writeln(mustRead("build/runtime.js"))
	return b.String()
}
