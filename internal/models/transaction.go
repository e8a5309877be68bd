package models

// CSV column names used by the MOI real-price register
const (
	FieldDistrict     = "鄉鎮市區"
	FieldAddress      = "土地位置建物門牌"
	FieldDate         = "交易年月日"
	FieldTotalPrice   = "總價元"
	FieldBuildingArea = "建物移轉總面積平方公尺"
	FieldUnitPrice    = "單價元平方公尺"
	FieldLandArea     = "土地移轉總面積平方公尺"
	FieldBuildingAge  = "屋齡"
	FieldBuildingType = "建物型態"
	FieldFloor        = "移轉層次"
)

// RequiredFields must all be present in a source header for a load to proceed
var RequiredFields = []string{
	FieldDistrict,
	FieldDate,
	FieldTotalPrice,
	FieldBuildingArea,
	FieldUnitPrice,
	FieldAddress,
}

// RawRow is one untyped record straight out of the source CSV
type RawRow map[string]string

// Transaction is a single normalized sale record.
// Prices are in 萬元, areas in 坪, the period code is the Minguo year-month
// prefix of the transaction date (e.g. "11201").
type Transaction struct {
	District     string  `json:"district"`
	Road         string  `json:"road"`
	Price        float64 `json:"price"`
	UnitPrice    float64 `json:"unit_price"`
	BuildingArea float64 `json:"building_area"`
	LandArea     float64 `json:"land_area"`
	BuildingAge  *int    `json:"building_age"`
	Date         string  `json:"transaction_date"`
	BuildingType string  `json:"building_type"`
	Floor        string  `json:"floor"`
}

// ProjectGroup clusters transactions on the same road whose house numbers
// sit within the proximity threshold of their sorted neighbor.
type ProjectGroup struct {
	RoadName         string        `json:"road_name"`
	AddressRange     string        `json:"address_range"`
	MinNumber        int           `json:"min_number"`
	MaxNumber        int           `json:"max_number"`
	TransactionCount int           `json:"transaction_count"`
	AvgPrice         float64       `json:"avg_price"`
	AvgUnitPrice     float64       `json:"avg_unit_price"`
	Addresses        []string      `json:"addresses"`
	Transactions     []Transaction `json:"transactions"`
}

// PriceStatistics is the aggregate answer for one query
type PriceStatistics struct {
	Area              string             `json:"area"`
	TotalTransactions int                `json:"total_transactions"`
	AvgPrice          float64            `json:"avg_price"`
	AvgUnitPrice      float64            `json:"avg_unit_price"`
	MaxPrice          float64            `json:"max_price"`
	MinPrice          float64            `json:"min_price"`
	MaxUnitPrice      float64            `json:"max_unit_price"`
	MinUnitPrice      float64            `json:"min_unit_price"`
	MedianAge         *float64           `json:"median_age"`
	PriceTrend        map[string]float64 `json:"price_trend"`
	QueryPeriod       string             `json:"query_period"`
	ProjectGroups     []ProjectGroup     `json:"project_groups"`
}
