package model

// MenuItem is a dish on the restaurant menu.
type MenuItem struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Image    string  `json:"image,omitempty"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

// Settings holds the restaurant profile shown to customers.
type Settings struct {
	ID             int64  `json:"id"`
	RestaurantName string `json:"restaurantName"`
	Address        string `json:"address"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	OperatingHours string `json:"operatingHours"`
	UPIID          string `json:"upiId"`
	IsOpen         bool   `json:"isOpen"`
}

// DefaultSettings returns the profile created for a restaurant that has not
// saved one yet.
func DefaultSettings() Settings {
	return Settings{
		RestaurantName: "My Restaurant",
		Address:        "123 Main Street",
		Phone:          "123-456-7890",
		Email:          "example@example.com",
		OperatingHours: "9 AM - 9 PM",
		IsOpen:         true,
	}
}

// Employee is a staff account stored in the restaurant datastore.
type Employee struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
