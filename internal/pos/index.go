package pos

import (
	"strings"

	"github.com/google/btree"
	"github.com/talkincode/toughpos/internal/domain"
)

// productIndex keeps the cached catalog ordered by scan code
type productIndex struct {
	tree *btree.BTreeG[domain.Product]
}

func newProductIndex() *productIndex {
	return &productIndex{tree: btree.NewG[domain.Product](16, func(a, b domain.Product) bool {
		return a.ID < b.ID
	})}
}

func (x *productIndex) get(id string) (domain.Product, bool) {
	return x.tree.Get(domain.Product{ID: id})
}

func (x *productIndex) put(p domain.Product) {
	x.tree.ReplaceOrInsert(p)
}

func (x *productIndex) remove(id string) {
	x.tree.Delete(domain.Product{ID: id})
}

func (x *productIndex) len() int {
	return x.tree.Len()
}

// reset replaces the whole content with rows
func (x *productIndex) reset(rows []domain.Product) {
	x.tree.Clear(false)
	for _, p := range rows {
		x.tree.ReplaceOrInsert(p)
	}
}

// all returns every product in scan-code order
func (x *productIndex) all() []domain.Product {
	result := make([]domain.Product, 0, x.tree.Len())
	x.tree.Ascend(func(p domain.Product) bool {
		result = append(result, p)
		return true
	})
	return result
}

// prefix returns up to limit products whose id starts with prefix; limit <= 0 means no limit
func (x *productIndex) prefix(prefix string, limit int) []domain.Product {
	result := make([]domain.Product, 0)
	x.tree.AscendGreaterOrEqual(domain.Product{ID: prefix}, func(p domain.Product) bool {
		if !strings.HasPrefix(p.ID, prefix) {
			return false
		}
		result = append(result, p)
		return limit <= 0 || len(result) < limit
	})
	return result
}
