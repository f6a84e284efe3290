package main

// Static content pools. These are data, not rules: games draw from them at
// random and never mutate them.

var spyfallLocations = []string{
	"Beach", "Hospital", "School", "Restaurant", "Bank", "Airport",
	"Casino", "Circus", "Embassy", "Hotel", "Military Base", "Movie Studio",
	"Spa", "Theater", "University", "Amusement Park", "Art Museum", "Barbershop",
	"Cathedral", "Christmas Market", "Corporate Party", "Crusader Army",
	"Forest", "Gas Station", "Harbor Docks", "Ice Hockey Stadium",
	"Jazz Club", "Library", "Night Club", "Ocean Liner", "Passenger Train",
	"Polar Station", "Police Station", "Racing Circuit", "Retirement Home",
	"Rock Concert", "Service Station", "Space Station", "Submarine", "Supermarket",
	"Temple", "Wedding", "Zoo",
}

var normalTopics = []string{
	"Pineapple belongs on pizza",
	"Cats are better than dogs",
	"Morning showers are superior to evening showers",
	"Books are better than movies",
	"Summer is the best season",
	"Coffee is overrated",
	"Social media is harmful to society",
	"Working from home is more productive",
	"Breakfast is the most important meal",
	"Physical books are better than e-books",
	"Socks should be considered a vegetable",
	"Gravity is just a conspiracy by the shoe industry",
	"Penguins are secret government agents",
	"Clouds are actually just sky sheep",
	"Mondays should be illegal",
	"Spoons are the most dangerous utensil",
	"Trees are plotting against humans",
	"The moon is made of abandoned dreams",
	"Escalators are just lazy stairs",
	"Bananas are trying to communicate with us",
	"Doorknobs have feelings",
	"Fish invented swimming to mock humans",
	"Toasters are time machines in disguise",
	"Pigeons are the real rulers of cities",
	"Sandwiches taste better when cut diagonally because of physics",
	"Aliens refuse to visit Earth because of our music taste",
	"Socks disappear in the dryer to start their own civilization",
	"Mirrors are windows to a parallel universe where everyone is left-handed",
	"Hiccups are attempts by your soul to escape",
	"Traffic lights are actually mood rings for the city",
	"Ice cream is a breakfast food",
	"Elevators are just vertical trains",
	"Shadows are proof the sun is spying on us",
	"Shoelaces secretly control our thoughts",
	"Cheese is humanity's greatest invention",
	"The ocean is just soup with too much water",
	"Cereal is actually a type of salad",
	"Bubbles are nature's way of laughing",
	"Chairs were invented to keep humans from floating away",
	"Raindrops are sky tears from laughing too hard",
	"Sneezes are brain resets",
	"Cookies taste better when stolen",
	"Maps are just flat globes pretending to be important",
	"Waffles are pancakes with abs",
	"Beards are face scarves",
	"Time zones are a government prank",
	"Lamps are trapped suns",
	"Your reflection is just a stranger who copies you",
}

// spicyTopics is the host-toggleable extended pool: still jokes, but the
// kind that starts arguments.
var spicyTopics = []string{
	"Tipping culture should be abolished entirely",
	"Modern art is pretentious garbage",
	"Participation trophies are ruining children",
	"Astrology is more useful than economics",
	"Reality TV is the highest form of art",
	"Homework should be illegal at every age",
	"Billionaires should not exist",
	"Voting should be mandatory",
	"Zoos are prisons and should be shut down",
	"Influencer is not a real job",
	"The five-day work week is a scam",
	"Brunch is a conspiracy to sell cheap eggs at a markup",
	"College is a waste of money for most people",
	"Your favorite band peaked on their first album",
	"Award shows are just rich people complimenting each other",
	"Self-checkout machines should pay you a wage",
	"New Year's resolutions are designed to fail",
	"Open-plan offices were invented by someone who hates people",
	"Standardized testing measures nothing but patience",
	"Airport food prices are a human rights issue",
	"Group projects are a form of punishment",
	"Loyalty cards are surveillance with extra steps",
	"Weather forecasts are organized guessing",
	"Gym memberships in January are donations",
	"Meetings that could be emails should be fineable",
	"Spoilers should carry a criminal penalty",
	"Decaf coffee is a prank on tired people",
	"Smart fridges are spying for big grocery",
}

var codenamesWordBank = []string{
	// Animals
	"LION", "EAGLE", "SHARK", "ELEPHANT", "TIGER", "WOLF", "BEAR", "DOLPHIN", "PENGUIN", "GIRAFFE",
	"ZEBRA", "KANGAROO", "OCTOPUS", "BUTTERFLY", "SPIDER", "SNAKE", "RABBIT", "HORSE", "COW", "PIG",

	// Objects
	"BOOK", "CHAIR", "TABLE", "PHONE", "COMPUTER", "CAR", "BICYCLE", "CLOCK", "MIRROR", "LAMP",
	"CAMERA", "GUITAR", "PIANO", "SWORD", "SHIELD", "CROWN", "DIAMOND", "KEY", "LOCK", "BRIDGE",

	// Places
	"BEACH", "MOUNTAIN", "FOREST", "DESERT", "CITY", "VILLAGE", "CASTLE", "SCHOOL", "HOSPITAL", "PARK",
	"LIBRARY", "MUSEUM", "THEATER", "STADIUM", "AIRPORT", "STATION", "HOTEL", "RESTAURANT", "BANK", "SHOP",

	// Abstract
	"LOVE", "FREEDOM", "PEACE", "WAR", "TIME", "SPACE", "ENERGY", "POWER", "MAGIC", "DREAM",
	"HOPE", "FEAR", "JOY", "ANGER", "WISDOM", "TRUTH", "LIE", "SECRET", "MYSTERY", "ADVENTURE",

	// Actions
	"RUN", "JUMP", "SWIM", "FLY", "DANCE", "SING", "WRITE", "READ", "THINK", "SLEEP",
	"EAT", "DRINK", "PLAY", "WORK", "STUDY", "TRAVEL", "EXPLORE", "DISCOVER", "CREATE", "DESTROY",

	// Colors/Elements
	"RED", "BLUE", "GREEN", "YELLOW", "BLACK", "WHITE", "SILVER", "GOLD", "FIRE", "WATER",
	"EARTH", "AIR", "ICE", "LIGHTNING", "SHADOW", "LIGHT", "DARK", "BRIGHT", "RAINBOW", "STORM",

	// Food
	"APPLE", "BANANA", "ORANGE", "PIZZA", "BURGER", "CAKE", "BREAD", "CHEESE", "MILK", "COFFEE",
	"TEA", "SOUP", "FISH", "CHICKEN", "BEEF", "RICE", "PASTA", "SALAD", "COOKIE", "CHOCOLATE",

	// Science/Tech
	"ROBOT", "LASER", "ROCKET", "SATELLITE", "ATOM", "MOLECULE", "VIRUS", "BACTERIA", "GENE", "BRAIN",
	"HEART", "BLOOD", "BONE", "MUSCLE", "NERVE", "CELL", "ORGAN", "SYSTEM", "NETWORK", "CODE",
}
