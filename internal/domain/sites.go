package domain

import "fmt"

const ridgeTileURL = "https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/ridge::%s-%s-0/{z}/{x}/{y}.png"

// radarSites is the NEXRAD site table served by the Iowa Environmental Mesonet
// RIDGE tile cache.
var radarSites = []RadarSite{
	ridgeSite("KBMX", "Birmingham, AL", -86.7704, 33.1721),
	ridgeSite("KMOB", "Mobile, AL", -88.23980167818203, 30.67955420809063),
	ridgeSite("KSJT", "San Angelo, TX", -100.49254797554903, 31.371271075387693),
	ridgeSite("KGLD", "Goodland, KS", -101.70035405855634, 39.36677016408064),
	ridgeSite("KFTG", "Denver, CO", -104.54580988554935, 39.78657637840219),
	ridgeSite("KFFC", "Peachtree City, GA", -84.56591015063673, 33.363571449672605),
	ridgeSite("PAEC", "Nome, AK", -165.29510965894443, 64.51146581337451),
	ridgeSite("PAPD", "Fairbanks (Fox), AK", -147.50187900387215, 65.03491892338862),
	ridgeSite("PAIH", "Middelton Island, AK", -146.303452, 59.460769),
	ridgeSite("PABC", "Bethel, AK", -161.87653978191392, 60.79196666924735),
	ridgeSite("PAKC", "King Salmon, AK", -156.62943672, 58.67944179),
	ridgeSite("PAHG", "Kenai, AK", -151.35145858, 60.72591164),
	ridgeSite("PACG", "Sitka, AK", -135.52916471, 56.85277715),
	ridgeSite("KSRX", "Fort Smith, AR", -94.36191658922293, 35.29044180297745),
	ridgeSite("KINX", "Inola, OK", -95.56416727063674, 36.1752028067492),
	ridgeSite("PGUA", "Tauming, Guam", 144.81111349, 13.45582808),
	ridgeSite("KCAE", "Columbia, SC", -81.11831851053395, 33.94873449083545),
	ridgeSite("KLWX", "Sterling, VA", -77.48759671101222, 38.976265860921735),
	ridgeSite("KDOX", "Ellendale, DE", -75.44005350487282, 38.82573816368541),
	ridgeSite("KAKQ", "Wakefield, VA", -77.00731166630416, 36.984056647121704),
	ridgeSite("KEVX", "Ponce De Leon, FL", -85.92163254938248, 30.564993024717726),
	ridgeSite("KSHV", "Shreveport, LA", -93.84126939481186, 32.45084696319989),
	ridgeSite("KOKX", "Upton, NY", -72.86410585014471, 40.86560052842017),
	ridgeSite("KDIX", "Manchester Township, NJ", -74.41078041712441, 39.94706049781776),
	ridgeSite("KBOX", "Taunton, MA", -71.13696335314464, 41.95593259541687),
	ridgeSite("KGYX", "Gray, ME", -70.25650160753966, 43.891341213618674),
	ridgeSite("KCXX", "Colchester, VT", -73.16643850306231, 44.51105045470628),
	ridgeSite("KCBW", "Houlton, ME", -67.80662542274432, 46.03929278565091),
	ridgeSite("KBUF", "Buffalo, NY", -78.7367812560146, 42.94883481293418),
	ridgeSite("KHDC", "Hammond, LA", -90.40733347950966, 30.51930546164259),
	ridgeSite("KDGX", "Brandon, MS", -89.98448134924753, 32.27981180649009),
	ridgeSite("KGWX", "Wise Gap, MS", -88.32927019993114, 33.89693455989751),
	ridgeSite("KBRO", "Brownsville, TX", -97.41893118665767, 25.916032652914698),
}

// ridgeSite builds a site whose RIDGE layer id is the ICAO code without its
// leading region letter. N0B is base reflectivity, N0S storm-relative velocity.
func ridgeSite(code, name string, lon, lat float64) RadarSite {
	id := code[1:]
	return RadarSite{
		Code:         code,
		Name:         name,
		Lon:          lon,
		Lat:          lat,
		Reflectivity: fmt.Sprintf(ridgeTileURL, id, "N0B"),
		Velocity:     fmt.Sprintf(ridgeTileURL, id, "N0S"),
	}
}
