package classify

// Spending categories
const (
	Grocery         = "Grocery"
	Electronics     = "Electronics"
	HomeImprovement = "Home Improvement"
	Clothing        = "Clothing"
	HealthPharmacy  = "Health & Pharmacy"
	Automotive      = "Automotive"
	OfficeSupplies  = "Office Supplies"
	Entertainment   = "Entertainment"
)

// vendorPatternConfidence is used for every vendorPatterns hit
const vendorPatternConfidence = 0.85

// AllCategories lists every category the classifier can produce
var AllCategories = []string{
	Grocery, Electronics, HomeImprovement, Clothing,
	HealthPharmacy, Automotive, OfficeSupplies, Entertainment,
}

type vendorEntry struct {
	name  string
	match CategoryMatch
}

// vendorTable is checked in order against the lower-cased vendor; the first
// whole-word hit wins.
var vendorTable = []vendorEntry{
	{"walmart", CategoryMatch{Grocery, 0.7}},
	{"target", CategoryMatch{Grocery, 0.6}},
	{"kroger", CategoryMatch{Grocery, 0.9}},
	{"safeway", CategoryMatch{Grocery, 0.9}},
	{"whole foods", CategoryMatch{Grocery, 0.9}},
	{"trader joe", CategoryMatch{Grocery, 0.9}},
	{"costco", CategoryMatch{Grocery, 0.8}},

	{"best buy", CategoryMatch{Electronics, 0.9}},
	{"apple store", CategoryMatch{Electronics, 0.9}},
	{"microcenter", CategoryMatch{Electronics, 0.9}},
	{"newegg", CategoryMatch{Electronics, 0.9}},

	{"home depot", CategoryMatch{HomeImprovement, 0.9}},
	{"lowes", CategoryMatch{HomeImprovement, 0.9}},
	{"lowe's", CategoryMatch{HomeImprovement, 0.9}},
	{"ace hardware", CategoryMatch{HomeImprovement, 0.9}},
	{"menards", CategoryMatch{HomeImprovement, 0.9}},

	{"cvs", CategoryMatch{HealthPharmacy, 0.9}},
	{"walgreens", CategoryMatch{HealthPharmacy, 0.9}},
	{"rite aid", CategoryMatch{HealthPharmacy, 0.9}},

	{"autozone", CategoryMatch{Automotive, 0.9}},
	{"advance auto", CategoryMatch{Automotive, 0.9}},
	{"napa auto", CategoryMatch{Automotive, 0.9}},
	{"shell", CategoryMatch{Automotive, 0.8}},
	{"exxon", CategoryMatch{Automotive, 0.8}},

	{"staples", CategoryMatch{OfficeSupplies, 0.9}},
	{"office depot", CategoryMatch{OfficeSupplies, 0.9}},
	{"officemax", CategoryMatch{OfficeSupplies, 0.9}},

	// two letters; kept last so longer names win
	{"bp", CategoryMatch{Automotive, 0.8}},
}

type vendorPattern struct {
	cues     []string
	category string
}

// vendorPatterns classify vendors missing from vendorTable by name cues
var vendorPatterns = []vendorPattern{
	{[]string{"market", "food", "grocer"}, Grocery},
	{[]string{"depot", "hardware", "supply"}, HomeImprovement},
	{[]string{"electronic", "tech", "computer"}, Electronics},
	{[]string{"pharmacy", "drug", "rx"}, HealthPharmacy},
}

type categoryKeywords struct {
	category string
	keywords []string
}

// itemKeywords are matched against item names; only the first hit per
// category counts for an item.
var itemKeywords = []categoryKeywords{
	{Grocery, []string{
		"milk", "bread", "eggs", "cheese", "meat", "chicken", "beef", "pork",
		"apple", "banana", "orange", "vegetable", "fruit", "cereal", "pasta",
		"rice", "flour", "sugar", "salt", "pepper", "oil", "butter", "yogurt",
		"produce", "deli", "bakery", "frozen", "organic", "snack",
	}},
	{Electronics, []string{
		"phone", "computer", "laptop", "tablet", "camera", "headphone", "speaker",
		"charger", "cable", "battery", "memory", "storage", "processor", "monitor",
		"keyboard", "mouse", "gaming", "console", "television", "tv", "smart",
		"wireless", "bluetooth", "usb", "hdmi", "iphone", "android", "samsung",
	}},
	{HomeImprovement, []string{
		"lumber", "wood", "nail", "screw", "hammer", "drill", "saw", "paint",
		"brush", "roller", "primer", "drywall", "insulation", "tile", "flooring",
		"plumbing", "electrical", "light", "fixture", "faucet", "pipe", "wire",
		"tool", "hardware", "garden", "lawn", "shed", "fence", "deck",
	}},
	{Clothing, []string{
		"shirt", "pants", "dress", "jacket", "coat", "shoes", "boots", "sneakers",
		"jeans", "sweater", "hoodie", "underwear", "socks", "hat", "cap", "belt",
		"accessory", "jewelry", "watch", "bag", "purse", "wallet", "clothing",
		"apparel", "fashion", "fabric", "cotton", "polyester", "size", "medium",
	}},
	{HealthPharmacy, []string{
		"medicine", "prescription", "vitamin", "supplement", "bandage", "antiseptic",
		"thermometer", "blood pressure", "glucose", "insulin", "inhaler", "cream",
		"ointment", "pill", "tablet", "capsule", "liquid", "syrup", "health",
		"medical", "pharmacy", "drug", "rx", "otc", "first aid", "wellness",
	}},
	{Automotive, []string{
		"gas", "gasoline", "fuel", "oil", "brake", "tire", "battery", "engine",
		"transmission", "filter", "spark plug", "coolant", "antifreeze", "wiper",
		"car", "auto", "vehicle", "motor", "service", "repair", "maintenance",
		"part", "automotive", "garage", "mechanic", "inspection", "registration",
	}},
	{OfficeSupplies, []string{
		"pen", "pencil", "paper", "notebook", "folder", "binder", "stapler",
		"paperclip", "tape", "glue", "marker", "highlighter", "eraser", "ruler",
		"calculator", "printer", "ink", "toner", "envelope", "stamp", "label",
		"office", "supplies", "stationery", "filing", "organize", "desktop",
	}},
	{Entertainment, []string{
		"movie", "dvd", "blu-ray", "game", "book", "magazine", "music", "cd",
		"vinyl", "streaming", "subscription", "ticket", "concert", "theater",
		"sport", "hobby", "toy", "puzzle", "card", "board game", "entertainment",
		"leisure", "recreation", "fun", "activity", "event", "show",
	}},
}

type textKeyword struct {
	keyword string
	match   CategoryMatch
}

// textKeywords are counted across the full receipt text
var textKeywords = []textKeyword{
	{"grocery", CategoryMatch{Grocery, 0.8}},
	{"food", CategoryMatch{Grocery, 0.6}},
	{"produce", CategoryMatch{Grocery, 0.8}},
	{"electronics", CategoryMatch{Electronics, 0.8}},
	{"computer", CategoryMatch{Electronics, 0.7}},
	{"hardware", CategoryMatch{HomeImprovement, 0.7}},
	{"tools", CategoryMatch{HomeImprovement, 0.7}},
	{"pharmacy", CategoryMatch{HealthPharmacy, 0.9}},
	{"prescription", CategoryMatch{HealthPharmacy, 0.9}},
	{"automotive", CategoryMatch{Automotive, 0.8}},
	{"gasoline", CategoryMatch{Automotive, 0.9}},
	{"office", CategoryMatch{OfficeSupplies, 0.7}},
	{"supplies", CategoryMatch{OfficeSupplies, 0.5}},
}
