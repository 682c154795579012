// Package graph provides traversals over graphs whose edges are discovered
// lazily.
package graph

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds concurrent expansions.
const DefaultConcurrency = 8

// Option configures a traversal.
type Option func(*config)

type config struct {
	concurrency int
}

// WithConcurrency sets the number of nodes expanded concurrently.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Expander returns the children of a node in declared order.
type Expander[N any] func(ctx context.Context, node N) ([]N, error)

// ReverseTopological returns every node reachable from roots exactly once,
// children before parents. Nodes are identified by key. Cycles are allowed;
// the back edge closing a cycle is ignored.
//
// Expansion runs concurrently, level by level. The order of the result only
// depends on the roots and the declared child order.
func ReverseTopological[N any, K comparable](ctx context.Context, roots []N, key func(N) K, expand Expander[N], opts ...Option) ([]N, error) {
	cfg := config{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}

	edges, err := discover(ctx, roots, key, expand, cfg.concurrency)
	if err != nil {
		return nil, err
	}
	return postOrder(roots, key, edges), nil
}

func discover[N any, K comparable](ctx context.Context, roots []N, key func(N) K, expand Expander[N], concurrency int) (map[K][]N, error) {
	edges := make(map[K][]N)
	known := make(map[K]struct{})

	var frontier []N
	for _, r := range roots {
		k := key(r)
		if _, ok := known[k]; ok {
			continue
		}
		known[k] = struct{}{}
		frontier = append(frontier, r)
	}

	for len(frontier) > 0 {
		children := make([][]N, len(frontier))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, node := range frontier {
			i, node := i, node
			g.Go(func() error {
				c, err := expand(gctx, node)
				if err != nil {
					return err
				}
				children[i] = c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []N
		for i, node := range frontier {
			edges[key(node)] = children[i]
			for _, c := range children[i] {
				k := key(c)
				if _, ok := known[k]; ok {
					continue
				}
				known[k] = struct{}{}
				next = append(next, c)
			}
		}
		frontier = next
	}

	return edges, nil
}

type frame[N any] struct {
	node N
	next int
}

func postOrder[N any, K comparable](roots []N, key func(N) K, edges map[K][]N) []N {
	visited := make(map[K]struct{}, len(edges))
	out := make([]N, 0, len(edges))

	for _, root := range roots {
		if _, ok := visited[key(root)]; ok {
			continue
		}
		visited[key(root)] = struct{}{}

		stack := []frame[N]{{node: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := edges[key(top.node)]
			if top.next < len(children) {
				child := children[top.next]
				top.next++
				k := key(child)
				if _, ok := visited[k]; !ok {
					visited[k] = struct{}{}
					stack = append(stack, frame[N]{node: child})
				}
				continue
			}
			out = append(out, top.node)
			stack = stack[:len(stack)-1]
		}
	}

	return out
}
