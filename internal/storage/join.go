package storage

import "atlas/internal/core"

// JoinEntries attaches each entry's category and vehicle by id. Entries whose
// references no longer resolve are left without the joined record.
func JoinEntries(entries []core.Entry, categories []core.Category, vehicles []core.Vehicle) {
	byCategory := make(map[string]*core.Category, len(categories))
	for i := range categories {
		byCategory[categories[i].ID] = &categories[i]
	}
	byVehicle := make(map[string]*core.Vehicle, len(vehicles))
	for i := range vehicles {
		byVehicle[vehicles[i].ID] = &vehicles[i]
	}
	for i := range entries {
		if c, ok := byCategory[entries[i].CategoryID]; ok {
			cp := *c
			entries[i].Category = &cp
		}
		if entries[i].HasVehicle() {
			if v, ok := byVehicle[*entries[i].VehicleID]; ok {
				vp := *v
				entries[i].Vehicle = &vp
			}
		}
	}
}
