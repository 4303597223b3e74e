package devserver

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/Zacy-Sokach/foodietour/internal/api"
)

// PopularCities 与线上后端返回的列表一致
var PopularCities = []string{
	"Chicago", "Paris", "Mumbai", "Tokyo", "Bangkok",
	"Istanbul", "Rome", "Barcelona", "New York", "London",
	"Melbourne", "Singapore", "Hong Kong", "Seoul", "Mexico City",
}

type cityFixture struct {
	dishes      []string
	restaurants []api.Restaurant
}

var fixtures = map[string]cityFixture{
	"paris": {
		dishes: []string{"Croissant", "Coq au Vin", "Escargots", "Crêpes", "Macarons", "Ratatouille"},
		restaurants: []api.Restaurant{
			{Name: "Du Pain et des Idées", Cuisine: "Bakery", Rating: rating(4.7), Specialties: []string{"Croissant", "Escargot pistache"}},
			{Name: "Le Comptoir du Relais", Cuisine: "French bistro", Rating: rating(4.5)},
			{Name: "Bouillon Chartier", Cuisine: "French", Rating: rating(4.3), Address: "7 Rue du Faubourg Montmartre"},
		},
	},
	"tokyo": {
		dishes: []string{"Sushi", "Ramen", "Tempura", "Yakitori", "Okonomiyaki"},
		restaurants: []api.Restaurant{
			{Name: "Tsukiji Outer Market", Cuisine: "Seafood", Rating: rating(4.6)},
			{Name: "Ichiran Shibuya", Cuisine: "Ramen", Rating: rating(4.4)},
			{Name: "Tempura Kondo", Cuisine: "Tempura", Rating: rating(4.8)},
		},
	},
	"rome": {
		dishes: []string{"Cacio e Pepe", "Carbonara", "Supplì", "Saltimbocca", "Maritozzo"},
		restaurants: []api.Restaurant{
			{Name: "Roscioli", Cuisine: "Roman", Rating: rating(4.6)},
			{Name: "Supplizio", Cuisine: "Street food", Rating: rating(4.5)},
			{Name: "Da Enzo al 29", Cuisine: "Trattoria", Rating: rating(4.5)},
		},
	},
	"mumbai": {
		dishes: []string{"Vada Pav", "Pav Bhaji", "Bhel Puri", "Butter Chicken", "Kulfi"},
		restaurants: []api.Restaurant{
			{Name: "Ashok Vada Pav", Cuisine: "Street food", Rating: rating(4.5)},
			{Name: "Britannia & Co.", Cuisine: "Parsi", Rating: rating(4.6)},
		},
	},
	"new york": {
		dishes: []string{"Bagel with Lox", "New York Pizza", "Pastrami on Rye", "Cheesecake"},
		restaurants: []api.Restaurant{
			{Name: "Russ & Daughters", Cuisine: "Appetizing", Rating: rating(4.7)},
			{Name: "Joe's Pizza", Cuisine: "Pizza", Rating: rating(4.5)},
			{Name: "Katz's Delicatessen", Cuisine: "Deli", Rating: rating(4.5)},
		},
	},
}

var weathers = []api.Weather{
	{Description: "Sunny", Temperature: 22},
	{Description: "Partly cloudy", Temperature: 18},
	{Description: "Light rain", Temperature: 12},
	{Description: "Clear sky", Temperature: 27},
	{Description: "Overcast", Temperature: 9},
}

func rating(v float64) *float64 { return &v }

// weatherFor 同一个城市总是得到同样的天气
func weatherFor(city string) api.Weather {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(city)))
	w := weathers[h.Sum32()%uint32(len(weathers))]
	humidity := 40 + int(h.Sum32()%40)
	w.Humidity = &humidity
	return w
}

func fixtureFor(city string) cityFixture {
	if f, ok := fixtures[strings.ToLower(city)]; ok {
		return f
	}
	return cityFixture{
		dishes: []string{fmt.Sprintf("%s street food", city), "Local stew", "Seasonal dessert"},
	}
}

func diningType(w api.Weather) string {
	if w.Temperature > 15 && !strings.Contains(strings.ToLower(w.Description), "rain") {
		return "outdoor"
	}
	return "indoor"
}

func restaurantNames(rs []api.Restaurant) []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

func pick(names []string, i int, fallback string) string {
	if i < len(names) {
		return names[i]
	}
	return fallback
}

// narrative 生成带 Breakfast/Lunch/Dinner 小节的 Markdown 行程
func narrative(city string, w api.Weather, dining string, restaurants []api.Restaurant) string {
	names := restaurantNames(restaurants)
	temp := w.Temperature
	outside := dining == "outdoor" && temp > 15

	morning := "a cozy indoor experience"
	midday := "Savor the warmth inside while watching the world go by"
	if outside {
		morning = "outdoor seating"
		midday = "Enjoy the pleasant weather on their terrace"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Your Foodie Tour of %s\n\n", city)
	fmt.Fprintf(&sb, "**Weather**: %s (%g°C)\n", w.Description, temp)
	fmt.Fprintf(&sb, "**Dining Style**: %s\n\n", dining)
	fmt.Fprintf(&sb, "## Breakfast\nStart your day at %s for a delightful morning meal. The %s weather makes it perfect for %s.\n\n",
		pick(names, 0, "a local café"), strings.ToLower(w.Description), morning)
	fmt.Fprintf(&sb, "## Lunch\nFor lunch, head to %s to experience authentic local flavors. %s.\n\n",
		pick(names, 1, "a traditional restaurant"), midday)
	fmt.Fprintf(&sb, "## Dinner\nEnd your culinary adventure at %s for an unforgettable evening meal. The perfect way to conclude your foodie exploration of %s!\n\n",
		pick(names, 2, "a renowned dinner spot"), city)
	sb.WriteString("*Bon appétit!*")
	return sb.String()
}
