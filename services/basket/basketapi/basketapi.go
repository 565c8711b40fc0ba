package basketapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	formcodec "github.com/go-playground/form/v4"

	"github.com/MarcGrol/webshopbackend/lib/myerrors"
)

// AddItem is the payload of the add-to-basket endpoint
type AddItem struct {
	ProductUID string `json:"product_uid" form:"productUid"`
	SellerUID  string `json:"seller_uid"  form:"sellerUid"`
	ListingUID string `json:"listing_uid" form:"listingUid"`
}

// ChangeQuantity adjusts a line item by exactly one unit: the sign of
// Count is the only information used, never its magnitude.
type ChangeQuantity struct {
	ProductUID string `json:"product_uid" form:"productUid"`
	SellerUID  string `json:"seller_uid"  form:"sellerUid"`
	Count      int    `json:"count"       form:"count"`
}

func NewAddItemFromRequest(r *http.Request) (AddItem, error) {
	req := AddItem{}
	err := decodeBody(r, &req)
	if err != nil {
		return AddItem{}, err
	}

	if req.ProductUID == "" || req.SellerUID == "" || req.ListingUID == "" {
		return AddItem{}, myerrors.NewInvalidInputErrorf("missing product_uid, seller_uid or listing_uid")
	}

	return req, nil
}

func NewChangeQuantityFromRequest(r *http.Request) (ChangeQuantity, error) {
	req := ChangeQuantity{}
	err := decodeBody(r, &req)
	if err != nil {
		return ChangeQuantity{}, err
	}

	if req.ProductUID == "" || req.SellerUID == "" {
		return ChangeQuantity{}, myerrors.NewInvalidInputErrorf("missing product_uid or seller_uid")
	}

	return req, nil
}

func decodeBody(r *http.Request, target any) error {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		err := r.ParseForm()
		if err != nil {
			return myerrors.NewInvalidInputError(err)
		}
		return decodeValues(r.Form, target)
	}

	err := json.NewDecoder(r.Body).Decode(target)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error decoding json body: %s", err))
	}
	return nil
}

func decodeValues(values url.Values, target any) error {
	err := formcodec.NewDecoder().Decode(target, values)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %s", err))
	}
	return nil
}
