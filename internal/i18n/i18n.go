// Package i18n holds the Khmer strings shown to staff. Handlers refer to
// messages by Key; the upstream API's own message text is never displayed.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a user-facing message.
type Key string

// Validation and client form messages.
const (
	PhoneEmpty             Key = "phone.empty"
	PhoneLength            Key = "phone.length"
	PhoneRequiredForSearch Key = "phone.required_for_search"
	PhoneNumberRequired    Key = "phone.required"
	CustomerNameRequired   Key = "client.name_required"
	ClientNotFound         Key = "client.not_found"
	InvalidPhone           Key = "client.invalid_phone"
	ServerError            Key = "server.error"
	ClientSearchError      Key = "client.search_error"
	ClientSaveError        Key = "client.save_error"
	ClientCreated          Key = "client.created"
	ClientFound            Key = "client.found"
	FormReset              Key = "client.form_reset"
)

// Order page messages.
const (
	ListLoadFailed      Key = "orders.list_load_failed"
	ListLoadError       Key = "orders.list_load_error"
	SearchError         Key = "orders.search_error"
	NoResults           Key = "orders.no_results"
	NoData              Key = "orders.no_data"
	AtLeastOneCriterion Key = "orders.at_least_one_criterion"
	DetailLoadFailed    Key = "orders.detail_load_failed"
	DetailLoadError     Key = "orders.detail_load_error"
	ClientDeleted       Key = "orders.client_deleted"
	ClientDeleteFailed  Key = "orders.client_delete_failed"
	ClientDeleteError   Key = "orders.client_delete_error"
	OrderDeleted        Key = "orders.order_deleted"
	OrderDeleteError    Key = "orders.order_delete_error"
	OrderUpdated        Key = "orders.order_updated"
	OrderUpdateError    Key = "orders.order_update_error"
	PrintQueued         Key = "orders.print_queued"
	PrintReady          Key = "orders.print_ready"
	PrintError          Key = "orders.print_error"
	RequestRunning      Key = "request.running"
	InvalidRequest      Key = "request.invalid"
)

// Captions rendered next to lists and pagination.
const (
	ShowingRange  Key = "caption.showing_range"
	PageOf        Key = "caption.page_of"
	SearchingBy   Key = "caption.searching_by"
	FoundResults  Key = "caption.found_results"
	Searching     Key = "caption.searching"
	NextClientID  Key = "caption.next_client_id"
	FoundClientID Key = "caption.found_client_id"
	ProductKinds  Key = "caption.product_kinds"
	ConfirmClient Key = "modal.confirm_client"
	ConfirmOrder  Key = "modal.confirm_order"
)

var khmer = map[Key]string{
	PhoneEmpty:             "សូមបញ្ចូលលេខទូរសព្ទ",
	PhoneLength:            "លេខទូរសព្ទត្រូវតែមាន ៧ ទៅ ១០ ខ្ទង់",
	PhoneRequiredForSearch: "សូមបញ្ចូលលេខទូរសព្ទដើម្បីស្វែងរក",
	PhoneNumberRequired:    "សូមបញ្ចូលលេខទូរសព្ទអតិថិជន",
	CustomerNameRequired:   "សូមបញ្ចូលឈ្មោះអតិថិជន",
	ClientNotFound:         "រកមិនឃើញអតិថិជន",
	InvalidPhone:           "លេខទូរសព្ទមិនត្រឹមត្រូវ",
	ServerError:            "មានបញ្ហាម៉ាស៊ីនមេ សូមព្យាយាមម្តងទៀត",
	ClientSearchError:      "មានបញ្ហាក្នុងការស្វែងរកអតិថិជន",
	ClientSaveError:        "មិនអាចរក្សាទុកអតិថិជនបានទេ",
	ClientCreated:          "អតិថិជនត្រូវបានបង្កើតដោយជោគជ័យ",
	ClientFound:            "រកឃើញអតិថិជន: %s",
	FormReset:              "ទម្រង់ត្រូវបានសម្អាត",

	ListLoadFailed:      "មិនអាចទាញយកបញ្ជីអតិថិជនបានទេ",
	ListLoadError:       "មានបញ្ហាក្នុងការទាញយកទិន្នន័យអតិថិជន",
	SearchError:         "មានបញ្ហាក្នុងការស្វែងរក",
	NoResults:           "រកមិនឃើញលទ្ធផល",
	NoData:              "មិនមានទិន្នន័យ",
	AtLeastOneCriterion: "សូមបញ្ចូលលក្ខខណ្ឌស្វែងរកយ៉ាងតិច ១",
	DetailLoadFailed:    "មិនអាចទាញយកព័ត៌មានលម្អិតអតិថិជនបានទេ",
	DetailLoadError:     "មានបញ្ហាក្នុងការទាញយកព័ត៌មានលម្អិតអតិថិជន",
	ClientDeleted:       "អតិថិជនត្រូវបានលុបដោយជោគជ័យ",
	ClientDeleteFailed:  "មិនអាចលុបអតិថិជនបានទេ",
	ClientDeleteError:   "មានបញ្ហាក្នុងការលុបអតិថិជន",
	OrderDeleted:        "កម្ម៉ង់ត្រូវបានលុបដោយជោគជ័យ",
	OrderDeleteError:    "មានបញ្ហាក្នុងការលុបកម្ម៉ង់",
	OrderUpdated:        "កម្ម៉ង់ត្រូវបានកែប្រែដោយជោគជ័យ",
	OrderUpdateError:    "មានបញ្ហាក្នុងការកែប្រែកម្ម៉ង់",
	PrintQueued:         "កំពុងរៀបចំការបោះពុម្ព...",
	PrintReady:          "វិក្កយបត្ររួចរាល់សម្រាប់បោះពុម្ព",
	PrintError:          "មានបញ្ហាក្នុងការបោះពុម្ព",
	RequestRunning:      "សំណើកំពុងដំណើរការ សូមរង់ចាំ",
	InvalidRequest:      "សំណើមិនត្រឹមត្រូវ",

	ShowingRange:  "បង្ហាញ %d-%d នៃ %d ធាតុ",
	PageOf:        "ទំព័រ %d នៃ %d",
	SearchingBy:   "ស្វែងរកដោយ %d លក្ខខណ្ឌ",
	FoundResults:  "រកឃើញ %d លទ្ធផល",
	Searching:     "កំពុងស្វែងរក...",
	NextClientID:  "ID បន្ទាប់: %d",
	FoundClientID: "រកឃើញ: %d",
	ProductKinds:  "(%d ប្រភេទ)",
	ConfirmClient: "តើអ្នកពិតជាចង់លុបអតិថិជន \"%s\" មែនទេ?",
	ConfirmOrder:  "តើអ្នកពិតជាចង់លុបកម្ម៉ង់ #%d មែនទេ?",
}

var printer = newPrinter()

func newPrinter() *message.Printer {
	b := catalog.NewBuilder(catalog.Fallback(language.Khmer))
	for key, msg := range khmer {
		if err := b.SetString(language.Khmer, string(key), msg); err != nil {
			panic("i18n: " + err.Error())
		}
	}
	return message.NewPrinter(language.Khmer, message.Catalog(b))
}

// T renders key with optional format arguments.
func T(key Key, args ...any) string {
	return printer.Sprintf(string(key), args...)
}

// Has reports whether key is part of the catalog.
func Has(key Key) bool {
	_, ok := khmer[key]
	return ok
}
