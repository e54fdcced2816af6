package collection

// Views are computed from the live items on every call and never stored.

func (c *Cache[T]) Filter(keep func(T) bool) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (c *Cache[T]) Active() []T {
	return c.Filter(func(item T) bool { return item.Active() })
}

func (c *Cache[T]) Inactive() []T {
	return c.Filter(func(item T) bool { return !item.Active() })
}

func (c *Cache[T]) WithCapacity() []T {
	return c.Filter(func(item T) bool { return item.HasCapacity() })
}
