// cmd/seeder/plan.go
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/household-be/internal/core/domain"
)

// seedNamespace keeps seeded IDs stable across runs
var seedNamespace = uuid.MustParse("5b0c1f7e-3a8d-4c9b-9e61-2f4d8a7c1b30")

func seedID(kind, name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+strings.ToLower(strings.TrimSpace(name))))
}

// LocationSeed is one location; Parent names another seed
type LocationSeed struct {
	Name     string
	Parent   string
	Tier     domain.LocationTier
	Capacity *int64
}

// ItemSeed is one item and the stock placed at Location
type ItemSeed struct {
	Name        string
	Description string
	Status      domain.ItemStatus
	UnitValue   decimal.Decimal
	Tags        []string
	Location    string
	Quantity    int64
}

// Plan is the full seed
type Plan struct {
	Locations []LocationSeed
	Items     []ItemSeed
}

func capacity(n int64) *int64 { return &n }

// DefaultPlan seeds a small house
func DefaultPlan() Plan {
	return Plan{
		Locations: []LocationSeed{
			{Name: "House", Tier: domain.TierBuilding},
			{Name: "Kitchen", Parent: "House", Tier: domain.TierRoom},
			{Name: "Garage", Parent: "House", Tier: domain.TierRoom},
			{Name: "Office", Parent: "House", Tier: domain.TierRoom},
			{Name: "Pantry Cabinet", Parent: "Kitchen", Tier: domain.TierContainer, Capacity: capacity(60)},
			{Name: "Top Shelf", Parent: "Pantry Cabinet", Tier: domain.TierShelf, Capacity: capacity(20)},
			{Name: "Tool Chest", Parent: "Garage", Tier: domain.TierContainer, Capacity: capacity(40)},
			{Name: "Storage Bin A", Parent: "Garage", Tier: domain.TierContainer, Capacity: capacity(25)},
			{Name: "Desk Drawer", Parent: "Office", Tier: domain.TierContainer, Capacity: capacity(30)},
		},
		Items: []ItemSeed{
			{Name: "Basmati Rice", Description: "5 lb bag", UnitValue: decimal.RequireFromString("8.99"), Tags: []string{"food", "grain"}, Location: "Top Shelf", Quantity: 3},
			{Name: "Olive Oil", Description: "Extra virgin, 1 L", UnitValue: decimal.RequireFromString("12.50"), Tags: []string{"food"}, Location: "Pantry Cabinet", Quantity: 2},
			{Name: "Cordless Drill", Description: "18V with two batteries", UnitValue: decimal.RequireFromString("149.00"), Tags: []string{"tools", "power"}, Location: "Tool Chest", Quantity: 1},
			{Name: "Socket Set", Description: "Metric and SAE, 40 pieces", UnitValue: decimal.RequireFromString("59.99"), Tags: []string{"tools"}, Location: "Tool Chest", Quantity: 1},
			{Name: "Holiday Lights", Description: "Warm white LED strings", UnitValue: decimal.RequireFromString("19.99"), Tags: []string{"seasonal"}, Location: "Storage Bin A", Quantity: 6},
			{Name: "Camping Lantern", UnitValue: decimal.RequireFromString("34.00"), Tags: []string{"outdoor"}, Location: "Storage Bin A", Quantity: 2},
			{Name: "USB-C Cables", Description: "2 m braided", UnitValue: decimal.RequireFromString("9.99"), Tags: []string{"electronics"}, Location: "Desk Drawer", Quantity: 5},
			{Name: "Passport Folder", UnitValue: decimal.Zero, Tags: []string{"documents"}, Location: "Desk Drawer", Quantity: 1},
		},
	}
}

// LoadWorkbook reads a plan from the "Locations" and "Items" sheets. The first
// row of each sheet is a header.
//
//	Locations: Name | Parent | Tier | Capacity
//	Items:     Name | Description | Status | Unit Value | Tags | Location | Quantity
func LoadWorkbook(path string) (Plan, error) {
	var plan Plan

	file, err := xlsx.OpenFile(path)
	if err != nil {
		return plan, fmt.Errorf("failed to open seed workbook: %w", err)
	}

	locations, ok := file.Sheet["Locations"]
	if !ok {
		return plan, fmt.Errorf("seed workbook has no Locations sheet")
	}
	err = forEachDataRow(locations, func(line int, get func(int) string) error {
		seed := LocationSeed{Name: get(0), Parent: get(1)}
		if seed.Name == "" {
			return nil
		}
		tier, err := domain.ParseLocationTier(strings.ToLower(get(2)))
		if err != nil {
			return fmt.Errorf("Locations row %d: %w", line, err)
		}
		seed.Tier = tier
		if s := get(3); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("Locations row %d: invalid capacity %q", line, s)
			}
			seed.Capacity = &n
		}
		plan.Locations = append(plan.Locations, seed)
		return nil
	})
	if err != nil {
		return plan, err
	}

	items, ok := file.Sheet["Items"]
	if !ok {
		return plan, nil
	}
	err = forEachDataRow(items, func(line int, get func(int) string) error {
		seed := ItemSeed{
			Name:        get(0),
			Description: get(1),
			Status:      domain.ItemStatus(strings.ToLower(get(2))),
			Location:    get(5),
		}
		if seed.Name == "" {
			return nil
		}
		if s := get(3); s != "" {
			v, err := decimal.NewFromString(strings.TrimPrefix(s, "$"))
			if err != nil {
				return fmt.Errorf("Items row %d: invalid unit value %q", line, s)
			}
			seed.UnitValue = v
		}
		for _, tag := range strings.Split(get(4), ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				seed.Tags = append(seed.Tags, tag)
			}
		}
		if s := get(6); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("Items row %d: invalid quantity %q", line, s)
			}
			seed.Quantity = n
		}
		plan.Items = append(plan.Items, seed)
		return nil
	})
	return plan, err
}

func forEachDataRow(sheet *xlsx.Sheet, fn func(line int, get func(int) string) error) error {
	rowIdx := 0
	err := sheet.ForEachRow(func(r *xlsx.Row) error {
		rowIdx++
		// Skip header
		if rowIdx == 1 {
			return nil
		}

		get := func(i int) string {
			c := r.GetCell(i)
			if c == nil {
				return ""
			}
			if s, err := c.FormattedValue(); err == nil {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(c.String())
		}
		return fn(rowIdx, get)
	})
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet.Name, err)
	}
	return nil
}
