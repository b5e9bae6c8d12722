package application

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Registry binds asset types to asset guards and contracts to contract guards.
//
// Reads go through an immutable snapshot swapped atomically on every write, so
// fund operations never contend with governance updates.
type Registry struct {
	writeMu sync.Mutex
	current atomic.Pointer[bindings]
}

type bindings struct {
	assets    map[address.Address]domain.AssetBinding
	byTag     map[domain.Tag]ports.AssetGuard
	contracts map[address.Address]ports.ContractGuard
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(&bindings{
		assets:    map[address.Address]domain.AssetBinding{},
		byTag:     map[domain.Tag]ports.AssetGuard{},
		contracts: map[address.Address]ports.ContractGuard{},
	})
	return r
}

func (r *Registry) update(fn func(next *bindings)) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	prev := r.current.Load()
	next := &bindings{
		assets:    make(map[address.Address]domain.AssetBinding, len(prev.assets)),
		byTag:     make(map[domain.Tag]ports.AssetGuard, len(prev.byTag)),
		contracts: make(map[address.Address]ports.ContractGuard, len(prev.contracts)),
	}
	for k, v := range prev.assets {
		next.assets[k] = v
	}
	for k, v := range prev.byTag {
		next.byTag[k] = v
	}
	for k, v := range prev.contracts {
		next.contracts[k] = v
	}
	fn(next)
	r.current.Store(next)
}

// RegisterAsset records the type and precision of an asset.
func (r *Registry) RegisterAsset(binding domain.AssetBinding) error {
	if binding.Asset.IsZero() {
		return errors.New("asset address is required")
	}
	if binding.Tag == "" {
		return errors.New("asset type tag is required")
	}
	r.update(func(next *bindings) { next.assets[binding.Asset] = binding })
	return nil
}

// SetAssetGuard binds the guard for its tag, replacing any previous one.
func (r *Registry) SetAssetGuard(guard ports.AssetGuard) error {
	if guard == nil {
		return errors.New("asset guard is nil")
	}
	r.update(func(next *bindings) { next.byTag[guard.Tag()] = guard })
	return nil
}

// SetContractGuard binds target to guard; a nil guard removes the binding.
func (r *Registry) SetContractGuard(target address.Address, guard ports.ContractGuard) {
	r.update(func(next *bindings) {
		if guard == nil {
			delete(next.contracts, target)
			return
		}
		next.contracts[target] = guard
	})
}

// Binding returns the registration of asset.
func (r *Registry) Binding(asset address.Address) (domain.AssetBinding, error) {
	b, ok := r.current.Load().assets[asset]
	if !ok {
		return domain.AssetBinding{}, domain.ErrAssetNotRegistered.With("%s", asset)
	}
	return b, nil
}

// AssetGuard returns the guard responsible for asset.
func (r *Registry) AssetGuard(asset address.Address) (ports.AssetGuard, domain.AssetBinding, error) {
	snap := r.current.Load()
	b, ok := snap.assets[asset]
	if !ok {
		return nil, domain.AssetBinding{}, domain.ErrAssetNotRegistered.With("%s", asset)
	}
	g, ok := snap.byTag[b.Tag]
	if !ok {
		return nil, b, domain.ErrNoAssetGuard.With("tag %s", b.Tag)
	}
	return g, b, nil
}

func (r *Registry) ContractGuard(target address.Address) (ports.ContractGuard, bool) {
	g, ok := r.current.Load().contracts[target]
	return g, ok
}

// Assets lists every registered asset, ordered by address.
func (r *Registry) Assets() []domain.AssetBinding {
	snap := r.current.Load()
	out := make([]domain.AssetBinding, 0, len(snap.assets))
	for _, b := range snap.assets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset.String() < out[j].Asset.String() })
	return out
}

// Contracts lists the addresses with a contract guard.
func (r *Registry) Contracts() map[address.Address]string {
	snap := r.current.Load()
	out := make(map[address.Address]string, len(snap.contracts))
	for a, g := range snap.contracts {
		out[a] = g.Name()
	}
	return out
}

var (
	_ ports.AssetDirectory    = (*Registry)(nil)
	_ ports.ContractDirectory = (*Registry)(nil)
)
