package entity

import "github.com/uptrace/bun"

// AddressBook is a customer's saved delivery address.
type AddressBook struct {
	bun.BaseModel `bun:"table:address_books"`

	ID           int64  `bun:",pk,autoincrement"`
	UserID       int64  `bun:"user_id,notnull"`
	Consignee    string `bun:"consignee"`
	Sex          string `bun:"sex"`
	Phone        string `bun:"phone,notnull"`
	ProvinceName string `bun:"province_name"`
	CityName     string `bun:"city_name"`
	DistrictName string `bun:"district_name"`
	Detail       string `bun:"detail,notnull"`
	Label        string `bun:"label"`
	IsDefault    bool   `bun:"is_default,notnull"`
}

// FullAddress concatenates the administrative parts and the detail line.
func (a AddressBook) FullAddress() string {
	return a.ProvinceName + a.CityName + a.DistrictName + a.Detail
}
