// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/valalign/pkg/sampling"
	"github.com/AleutianAI/valalign/services/alignment/datatypes"
	"github.com/AleutianAI/valalign/services/alignment/session"
)

// errorStatus maps an error to its HTTP status. Request and computation
// errors are the client's: 400. Anything unrecognised is a 500.
func errorStatus(err error) int {
	var (
		validationErr *datatypes.ValidationError
		unknownErr    *session.UnknownNormError
		paramErr      *sampling.InvalidParameterError
		aggErr        *sampling.AggregationError
	)
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &unknownErr),
		errors.As(err, &paramErr),
		errors.As(err, &aggErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	resp := datatypes.ErrorResponse{Error: err.Error()}
	var aggErr *sampling.AggregationError
	if errors.As(err, &aggErr) && aggErr.Path >= 0 {
		path := aggErr.Path
		resp.Path = &path
	}
	c.JSON(errorStatus(err), resp)
}
