package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	ratedomain "github.com/smallbiznis/colegio/internal/rate/domain"
)

func (s *Server) ListRates(c *gin.Context) {
	var req ratedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.rateSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateRate(c *gin.Context) {
	var req ratedomain.CreateRequest
	if err := bindLooseJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.rateSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetRate(c *gin.Context) {
	resp, err := s.rateSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateRate(c *gin.Context) {
	var req ratedomain.UpdateRequest
	if err := bindLooseJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")

	resp, err := s.rateSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRate(c *gin.Context) {
	if err := s.rateSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) GetFeePrice(c *gin.Context) {
	resp, err := s.feeRecordSvc.CurrentPrice(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetFeePrice(c *gin.Context) {
	var req feerecorddomain.SetPriceRequest
	if err := bindLooseJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.feeRecordSvc.SetPrice(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
