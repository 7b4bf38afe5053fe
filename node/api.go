// Copyright (C) 2025 Meshsub Authors
// Licensed under the GNU General Public License v3.0

package node

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meshsub/meshsub/archive"
	"github.com/meshsub/meshsub/logger"
)

type nodeAPI struct {
	node *Node
}

func serveNodeAPI(node *Node) {
	api := &nodeAPI{node}

	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", api.getStatus)
	r.GET("/nodes", api.getNodes)

	r.GET("/epochs/last", api.getLastResult)
	r.GET("/epochs/:epoch/scores", api.getResult)

	go func() {
		err := r.Run(fmt.Sprintf(":%d", node.config.APIPort))
		if err != nil {
			logger.I().Fatalf("failed to start api %+v", err)
		}
	}()
}

func (api *nodeAPI) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, api.node.engine.Status())
}

func (api *nodeAPI) getNodes(c *gin.Context) {
	hbs, err := api.node.tracker.LivePeers(c.Request.Context(), time.Now())
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, hbs)
}

func (api *nodeAPI) getLastResult(c *gin.Context) {
	last, err := api.node.archive.LastEpoch()
	if err != nil {
		c.String(http.StatusNotFound, "no settled epoch yet")
		return
	}
	res, err := api.node.archive.Get(last)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

func (api *nodeAPI) getResult(c *gin.Context) {
	estr := c.Param("epoch")
	epoch, err := strconv.ParseUint(estr, 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "cannot parse epoch")
		return
	}
	res, err := api.node.archive.Get(epoch)
	if err != nil {
		if err == archive.ErrNotFound {
			c.String(http.StatusNotFound, err.Error())
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}
