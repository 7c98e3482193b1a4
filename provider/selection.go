package provider

import "context"

// Available returns the names of all registered providers whose IsAvailable
// currently reports true, in registration order. The result is computed fresh
// on each call so configuration changes are observed immediately.
func (r *Registry[T]) Available(ctx context.Context) []string {
	instances, order, _, _ := r.snapshot()

	names := make([]string, 0, len(order))
	for _, name := range order {
		if p, ok := instances[name]; ok && p.IsAvailable(ctx) {
			names = append(names, name)
		}
	}
	return names
}

// SelectionOrder computes the ordered candidate list of providers to try for
// one request:
//
//  1. The explicitly requested provider, if registered and available.
//  2. Otherwise the configured default, if registered and available.
//  3. Each fallback-chain name, in order, that is registered, available,
//     and not already placed.
//  4. Any remaining registered-and-available provider, in registration order.
//
// No provider appears twice. The result may be empty; callers must treat
// that as "no provider available" and fail without any network call.
func (r *Registry[T]) SelectionOrder(ctx context.Context, requested string) []T {
	instances, order, defaultName, fallback := r.snapshot()

	selected := make([]T, 0, len(order))
	placed := make(map[string]bool, len(order))

	place := func(name string) {
		if name == "" || placed[name] {
			return
		}
		p, ok := instances[name]
		if !ok || !p.IsAvailable(ctx) {
			return
		}
		placed[name] = true
		selected = append(selected, p)
	}

	if requested != "" {
		place(requested)
	}
	if len(selected) == 0 {
		place(defaultName)
	}
	for _, name := range fallback {
		place(name)
	}
	for _, name := range order {
		place(name)
	}

	return selected
}
