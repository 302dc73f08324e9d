package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/and161185/agrimarket/internal/model"
)

// Profiles lists producer profiles.
func (c *Client) Profiles(ctx context.Context, f model.ProfileFilters) (model.Page[model.Profile], error) {
	var out model.Page[model.Profile]
	err := c.call(ctx, http.MethodGet, "/profiles/", func(r *resty.Request) {
		for k, v := range map[string]string{
			"search":              f.Search,
			"location_prefecture": f.LocationPrefecture,
			"location_city":       f.LocationCity,
			"ordering":            f.Ordering,
		} {
			if v != "" {
				r.SetQueryParam(k, v)
			}
		}
		if f.Page > 0 {
			r.SetQueryParam("page", strconv.Itoa(f.Page))
		}
	}, &out)
	return out, err
}

// Profile fetches a public profile by username.
func (c *Client) Profile(ctx context.Context, username string) (model.Profile, error) {
	var out model.Profile
	err := c.call(ctx, http.MethodGet, "/profiles/{username}/", func(r *resty.Request) {
		r.SetPathParam("username", username)
	}, &out)
	return out, err
}

// MyProfile fetches the current user's profile.
func (c *Client) MyProfile(ctx context.Context) (model.Profile, error) {
	var out model.Profile
	err := c.call(ctx, http.MethodGet, "/profiles/me/", nil, &out)
	return out, err
}

// UpdateMyProfile patches the current user's profile as a multipart form.
func (c *Client) UpdateMyProfile(ctx context.Context, upd model.ProfileUpdate) (model.Profile, error) {
	var out model.Profile
	err := c.call(ctx, http.MethodPatch, "/profiles/me/", func(r *resty.Request) {
		fields := map[string]string{}
		for k, v := range map[string]string{
			"farm_name":           upd.FarmName,
			"location_prefecture": upd.LocationPrefecture,
			"location_city":       upd.LocationCity,
			"bio":                 upd.Bio,
			"website_url":         upd.WebsiteURL,
			"certification_info":  upd.CertificationInfo,
		} {
			if v != "" {
				fields[k] = v
			}
		}
		r.SetFormData(fields)
		if upd.Image != "" {
			r.SetFile("image", upd.Image)
		}
	}, &out)
	return out, err
}
