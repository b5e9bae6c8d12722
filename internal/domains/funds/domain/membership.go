package domain

import "github.com/Apurer/fund-ledger/internal/shared/address"

// IsPrivate reports whether membership is restricted. A fund with no members and
// no membership collection is public.
func (f *Fund) IsPrivate() bool {
	return len(f.Members) > 0 || len(f.MembershipCollections) > 0
}

// IsListedMember reports explicit membership; the manager always counts.
func (f *Fund) IsListedMember(addr address.Address) bool {
	return addr == f.Manager || f.Members[addr]
}

func (f *Fund) AddMembers(members ...address.Address) {
	for _, m := range members {
		if !m.IsZero() {
			f.Members[m] = true
		}
	}
}

func (f *Fund) RemoveMembers(members ...address.Address) {
	for _, m := range members {
		delete(f.Members, m)
	}
}

// SetMembershipCollection enables or disables a collection whose holders are members.
func (f *Fund) SetMembershipCollection(collection address.Address, enabled bool) {
	for i, c := range f.MembershipCollections {
		if c == collection {
			if !enabled {
				f.MembershipCollections = append(f.MembershipCollections[:i], f.MembershipCollections[i+1:]...)
			}
			return
		}
	}
	if enabled {
		f.MembershipCollections = append(f.MembershipCollections, collection)
	}
}

// MemberList returns explicit members sorted by address.
func (f *Fund) MemberList() []address.Address {
	out := make([]address.Address, 0, len(f.Members))
	for m := range f.Members {
		out = append(out, m)
	}
	sortAddresses(out)
	return out
}

func sortAddresses(list []address.Address) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].String() < list[j-1].String(); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}
