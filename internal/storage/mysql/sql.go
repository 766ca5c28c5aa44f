package mysql

const catalogColumns = `id, hid, name, address, city, country, lat, lon, star_rating, rating, chain, kind, is_closed, amenities, images, room_groups, updated_at`

const insertHotelsPrefix = "INSERT INTO catalog_hotels\n  (id, hid, name, address, city, country, lat, lon, star_rating, rating, chain, kind, is_closed, amenities, images, room_groups)\nVALUES "

// 16 params per row.
const hotelRowPlaceholder = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"

const insertHotelsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  hid         = VALUES(hid),\n" +
	"  name        = VALUES(name),\n" +
	"  address     = VALUES(address),\n" +
	"  city        = VALUES(city),\n" +
	"  country     = VALUES(country),\n" +
	"  lat         = VALUES(lat),\n" +
	"  lon         = VALUES(lon),\n" +
	"  star_rating = VALUES(star_rating),\n" +
	"  rating      = VALUES(rating),\n" +
	"  chain       = VALUES(chain),\n" +
	"  kind        = VALUES(kind),\n" +
	"  is_closed   = VALUES(is_closed),\n" +
	"  amenities   = VALUES(amenities),\n" +
	"  images      = VALUES(images),\n" +
	"  room_groups = VALUES(room_groups),\n" +
	"  updated_at  = CURRENT_TIMESTAMP\n"

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// The IN list is expanded by the repo.
const selectByHIDsPrefix = `SELECT ` + catalogColumns + ` FROM catalog_hotels WHERE hid IN `

const selectByHIDSQL = `SELECT ` + catalogColumns + ` FROM catalog_hotels WHERE hid = ?`

const listByCitySQL = `
SELECT ` + catalogColumns + `
FROM catalog_hotels
WHERE city = ? AND is_closed = FALSE
ORDER BY star_rating DESC, id
LIMIT ?`
