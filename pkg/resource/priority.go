package resource

import (
	"context"
	"fmt"
)

// PriorityFactory chains other factories: a lookup tries each manager in
// order and returns the first hit. Not-found results fall through to the next
// manager; any other failure stops the lookup.
type PriorityFactory struct {
	factories []Factory
	manager   *priorityManager
}

// NewPriorityFactory returns a factory over the given chain. The chain must
// not be empty.
func NewPriorityFactory(factories ...Factory) (*PriorityFactory, error) {
	chain := make([]Factory, 0, len(factories))
	for _, factory := range factories {
		if factory != nil {
			chain = append(chain, factory)
		}
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("resource: %s factory: %w %q", KindPriority, ErrMissingOption, "chain")
	}
	managers := make([]Manager, len(chain))
	for i, factory := range chain {
		managers[i] = factory.MakeInstance()
	}
	return &PriorityFactory{factories: chain, manager: &priorityManager{managers: managers}}, nil
}

// Kind implements Factory.
func (f *PriorityFactory) Kind() Kind { return KindPriority }

// MakeInstance implements Factory.
func (f *PriorityFactory) MakeInstance() Manager { return f.manager }

// Chain returns the kinds of the chained factories in lookup order.
func (f *PriorityFactory) Chain() []Kind {
	kinds := make([]Kind, len(f.factories))
	for i, factory := range f.factories {
		kinds[i] = factory.Kind()
	}
	return kinds
}

type priorityManager struct {
	managers []Manager
}

func (m *priorityManager) Content(ctx context.Context, path string) ([]byte, error) {
	for _, manager := range m.managers {
		data, err := manager.Content(ctx, path)
		if err == nil {
			return data, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, notFound(string(KindPriority), path)
}
