// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workspace

import (
	"path"
	"slices"
	"strings"

	"github.com/tombee/rdbg/internal/debugger"
)

// JavaMediaType is the media type registered for JavaResolver.
const JavaMediaType = "text/x-java"

// JavaResolver maps a source file under one of the workspace source roots
// to its fully qualified class name: <root>/a/b/C.java becomes a.b.C.
type JavaResolver struct {
	roots []string
}

// NewJavaResolver resolves against roots. Longer roots win when they nest.
func NewJavaResolver(roots []string) *JavaResolver {
	sorted := slices.Clone(roots)
	slices.SortFunc(sorted, func(a, b string) int { return len(b) - len(a) })
	return &JavaResolver{roots: sorted}
}

// Resolve implements debugger.Resolver.
func (r *JavaResolver) Resolve(f debugger.File) (string, bool) {
	if path.Ext(f.Path) != ".java" {
		return "", false
	}
	for _, root := range r.roots {
		root = asRoot(root)
		rel, ok := strings.CutPrefix(f.Path, root)
		if !ok || rel == "" {
			continue
		}
		rel = strings.TrimSuffix(rel, ".java")
		return strings.ReplaceAll(rel, "/", "."), true
	}
	return "", false
}

// Resolvers returns a registry with JavaResolver registered for the
// workspace's roots.
func (w *Workspace) Resolvers() *debugger.ResolverRegistry {
	reg := debugger.NewResolverRegistry()
	jr := NewJavaResolver(w.roots)
	reg.Register(".java", jr)
	reg.Register(JavaMediaType, jr)
	return reg
}
