package constants

import "strings"

// KeyType is the semantic kind of a raw identifier.
type KeyType string

const (
	KeyVendorItem KeyType = "vendor_item"
	KeyUPC        KeyType = "upc"
	KeyEAN        KeyType = "ean"
	KeyGTIN       KeyType = "gtin"
	KeyCustomerID KeyType = "customer_id"
	KeyStoreID    KeyType = "store_id"
)

// Unresolved is the canonical value written for identifiers with no active mapping.
const Unresolved = "UNRESOLVED"

// ItemKeyTypes is the default candidate order for line item identifiers.
var ItemKeyTypes = []KeyType{KeyVendorItem, KeyUPC, KeyEAN, KeyGTIN}

var allKeyTypes = map[KeyType]struct{}{
	KeyVendorItem: {},
	KeyUPC:        {},
	KeyEAN:        {},
	KeyGTIN:       {},
	KeyCustomerID: {},
	KeyStoreID:    {},
}

// ParseKeyType accepts the stored value plus a few spellings seen in mapping spreadsheets.
func ParseKeyType(s string) (KeyType, bool) {
	k := strings.ToLower(strings.TrimSpace(s))
	switch k {
	case "vendor", "item", "vendor_item_number", "sku":
		return KeyVendorItem, true
	case "customer", "customer_code":
		return KeyCustomerID, true
	case "store", "store_code", "warehouse":
		return KeyStoreID, true
	}
	if _, ok := allKeyTypes[KeyType(k)]; ok {
		return KeyType(k), true
	}
	return "", false
}

// Default labels applied when a header identifier is missing.
const (
	DefaultCustomerIDI     = "IDI - Richmond"
	DefaultStoreKL         = "KL - Richmond"
	DefaultUNFIEastCompany = "UNFI EAST"
)

// KeyTypesAsStringSlice lists every key type in a stable order.
func KeyTypesAsStringSlice() []string {
	return []string{
		string(KeyVendorItem), string(KeyUPC), string(KeyEAN), string(KeyGTIN),
		string(KeyCustomerID), string(KeyStoreID),
	}
}
