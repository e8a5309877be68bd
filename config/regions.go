package config

// RegionSource describes one supported open-data region
type RegionSource struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Archive  bool   `json:"archive"`
}

// SupportedRegions is the registry of regions the downloader knows about
var SupportedRegions = []RegionSource{
	{
		Key:      "taichung",
		Name:     "臺中市",
		URL:      "https://plvr.land.moi.gov.tw/DownloadSeason?season=114S3&type=zip&fileName=lvr_landcsv.zip",
		Filename: "taichung_prices.csv",
		Archive:  true,
	},
	{
		Key:      "taipei",
		Name:     "臺北市",
		URL:      "https://plvr.land.moi.gov.tw/DownloadSeason?season=114S3&type=zip&fileName=lvr_landcsv.zip",
		Filename: "taipei_prices.csv",
		Archive:  true,
	},
	{
		Key:      "new_taipei",
		Name:     "新北市",
		URL:      "https://plvr.land.moi.gov.tw/DownloadSeason?season=114S3&type=zip&fileName=lvr_landcsv.zip",
		Filename: "new_taipei_prices.csv",
		Archive:  true,
	},
	{
		Key:      "kaohsiung",
		Name:     "高雄市",
		URL:      "https://plvr.land.moi.gov.tw/DownloadSeason?season=114S3&type=zip&fileName=lvr_landcsv.zip",
		Filename: "kaohsiung_prices.csv",
		Archive:  true,
	},
}

// GetRegionKeys returns the keys of all supported regions
func GetRegionKeys() []string {
	keys := make([]string, len(SupportedRegions))
	for i, region := range SupportedRegions {
		keys[i] = region.Key
	}
	return keys
}

// GetRegionByKey returns a region source by key
func GetRegionByKey(key string) *RegionSource {
	for _, region := range SupportedRegions {
		if region.Key == key {
			return &region
		}
	}
	return nil
}
