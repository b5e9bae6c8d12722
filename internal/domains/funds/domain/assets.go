package domain

import "github.com/Apurer/fund-ledger/internal/shared/address"

// IndexOf returns the position of asset in the supported list or -1.
func (f *Fund) IndexOf(asset address.Address) int {
	for i, a := range f.Assets {
		if a.Asset == asset {
			return i
		}
	}
	return -1
}

func (f *Fund) IsSupported(asset address.Address) bool {
	return f.IndexOf(asset) >= 0
}

func (f *Fund) IsDepositAsset(asset address.Address) bool {
	i := f.IndexOf(asset)
	return i >= 0 && f.Assets[i].IsDeposit
}

func (f *Fund) HasDepositAsset() bool {
	for _, a := range f.Assets {
		if a.IsDeposit {
			return true
		}
	}
	return false
}

// AssetAddresses lists supported assets in order.
func (f *Fund) AssetAddresses() []address.Address {
	out := make([]address.Address, len(f.Assets))
	for i, a := range f.Assets {
		out[i] = a.Asset
	}
	return out
}

// AddAsset appends a new asset or updates the deposit flag of an existing one.
func (f *Fund) AddAsset(asset SupportedAsset, maxAssets int) error {
	if i := f.IndexOf(asset.Asset); i >= 0 {
		f.Assets[i].IsDeposit = asset.IsDeposit
		return nil
	}
	if len(f.Assets) >= maxAssets {
		return ErrMaxSupportedAssets.With("limit %d", maxAssets)
	}
	f.Assets = append(f.Assets, asset)
	return nil
}

// RemoveAsset drops asset by moving the last entry into its slot.
// The caller must have checked the fund holds none of it.
func (f *Fund) RemoveAsset(asset address.Address) error {
	i := f.IndexOf(asset)
	if i < 0 {
		return ErrAssetNotSupported.With("%s", asset)
	}
	last := len(f.Assets) - 1
	f.Assets[i] = f.Assets[last]
	f.Assets = f.Assets[:last]
	return nil
}
